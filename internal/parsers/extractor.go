// Package parsers turns the raw text of bank statement pages into transaction
// candidates.
//
// Extraction is a small state machine over classified lines. Date lines set
// the date context, descriptor lines open a transaction whose kind is decided
// by the canon tables, and the amount is found by scanning forward without
// crossing a date or a header. A second pass re-reads cash back lines and adds
// whatever the first pass missed; both passes share one set of dedup keys.
//
// Extraction never fails. Lines it cannot use are reported as diagnostics.
package parsers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"statement-ledger/internal/canon"
	"statement-ledger/internal/models"
	"statement-ledger/pkg/logger"
)

// ExtractResult is the output of one extraction run
type ExtractResult struct {
	Candidates  []models.Candidate
	Diagnostics []Diagnostic
	Declared    models.DeclaredInputs
	Stats       *ParseStats
}

// Transactions converts the candidates to ledger rows
func (r *ExtractResult) Transactions() []models.Transaction {
	return ToTransactions(r.Candidates)
}

// Extractor reads statement pages
type Extractor struct {
	config *ExtractorConfig
	logger logger.Logger
}

// NewExtractor creates an extractor. A nil config uses the defaults.
func NewExtractor(config *ExtractorConfig) (*Extractor, error) {
	if config == nil {
		config = DefaultExtractorConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extractor config: %w", err)
	}
	return &Extractor{
		config: config,
		logger: logger.WithComponent("extractor"),
	}, nil
}

// pass holds the state shared by both extraction passes
type pass struct {
	seen        map[string]struct{}
	candidates  []models.Candidate
	diagnostics []Diagnostic
	stats       *ParseStats
}

func (p *pass) diag(page int, line ClassifiedLine, reason string) {
	p.diagnostics = append(p.diagnostics, Diagnostic{Page: page, Line: line.Index, Text: line.Text, Reason: reason})
}

// add keeps candidates whose dedup key has not been seen and reports how many were kept
func (p *pass) add(cands []models.Candidate) int {
	kept := 0
	for _, c := range cands {
		key := KeyFor(c).String()
		if _, dup := p.seen[key]; dup {
			p.stats.Duplicates++
			continue
		}
		p.seen[key] = struct{}{}
		p.candidates = append(p.candidates, c)
		kept++
	}
	return kept
}

// Extract runs both passes over the pages. Page numbers in the result start at 1.
func (e *Extractor) Extract(pages []string) *ExtractResult {
	classified := make([][]ClassifiedLine, len(pages))
	p := &pass{seen: make(map[string]struct{}), stats: &ParseStats{Pages: len(pages)}}

	for i, text := range pages {
		classified[i] = ClassifyPage(text)
		p.stats.TotalLines += len(classified[i])
		for _, l := range classified[i] {
			if l.Tag == SectionHeader {
				p.stats.Headers++
			}
		}
	}

	e.primaryPass(classified, p)
	if e.config.RecoverCashback {
		e.recoveryPass(classified, p)
	}

	sort.SliceStable(p.candidates, func(i, j int) bool {
		a, b := p.candidates[i], p.candidates[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Line < b.Line
	})

	for _, c := range p.candidates {
		if c.Date.IsZero() {
			p.stats.UnknownDate++
		}
	}
	p.stats.Candidates = len(p.candidates)

	result := &ExtractResult{
		Candidates:  p.candidates,
		Diagnostics: p.diagnostics,
		Stats:       p.stats,
		Declared:    models.DeclaredInputs{Year: e.config.Year},
	}
	if e.config.ReadDeclarations {
		result.Declared = ReadDeclarations(classified, e.config.Year)
	}

	e.logger.WithFields(logger.Fields{
		"pages":       p.stats.Pages,
		"rows":        p.stats.Candidates,
		"recovered":   p.stats.Recovered,
		"dropped":     p.stats.Dropped,
		"diagnostics": len(p.diagnostics),
	}).Debug("Extraction complete")

	return result
}

func (e *Extractor) primaryPass(pages [][]ClassifiedLine, p *pass) {
	var dateCtx time.Time
	for pageIdx, lines := range pages {
		page := pageIdx + 1
		if !e.config.CarryDateAcrossPages {
			dateCtx = time.Time{}
		}

		i := 0
		for i < len(lines) {
			line := lines[i]
			switch line.Tag {
			case DateOnly:
				if d, ok := ParseDateToken(line.Text, e.config.Year); ok {
					dateCtx = d
				} else {
					p.diag(page, line, "invalid date")
				}
				i++
			case Descriptor:
				cands, next, reason := e.readTransaction(lines, i, dateCtx, page)
				if reason != "" {
					p.stats.Dropped++
					p.diag(page, line, reason)
				}
				p.add(cands)
				for _, c := range cands {
					if c.Date.IsZero() {
						p.diag(page, line, "date unknown")
						break
					}
				}
				i = next
			default:
				i++
			}
		}
	}
}

// recoveryPass revisits every cash back line, including ones the primary
// pass consumed as continuation text, and adds splits it has not seen.
func (e *Extractor) recoveryPass(pages [][]ClassifiedLine, p *pass) {
	var dateCtx time.Time
	for pageIdx, lines := range pages {
		page := pageIdx + 1
		if !e.config.CarryDateAcrossPages {
			dateCtx = time.Time{}
		}
		for i, line := range lines {
			switch line.Tag {
			case DateOnly:
				if d, ok := ParseDateToken(line.Text, e.config.Year); ok {
					dateCtx = d
				}
			case Descriptor:
				if !canon.CashbackPattern.MatchString(line.Text) {
					continue
				}
				cands, _, reason := e.readTransaction(lines, i, dateCtx, page)
				if reason != "" {
					continue
				}
				if kept := p.add(cands); kept > 0 {
					p.stats.Recovered += kept
					p.diag(page, line, "recovered by cash back pass")
				}
			}
		}
	}
}

// readTransaction builds the candidates opened by the descriptor at index i.
// A non-empty reason means the line was dropped.
func (e *Extractor) readTransaction(lines []ClassifiedLine, i int, dateCtx time.Time, page int) ([]models.Candidate, int, string) {
	line := lines[i]
	body := line.Text
	date := dateCtx
	var notes []string

	if token, rest, ok := splitLeadingDate(line.Text); ok {
		body = rest
		if d, ok := ParseDateToken(token, e.config.Year); ok {
			date = d
		} else {
			notes = append(notes, fmt.Sprintf("invalid inline date %q, using context date", token))
		}
	}

	kind, ok := canon.ClassifyKind(body)
	if !ok {
		// not a transaction line; headers and prose land here
		return nil, i + 1, ""
	}

	scan, found, next := scanAmount(lines, i)
	if !found {
		return nil, next, "no amount found"
	}
	if scan.Amount.IsZero() {
		return nil, next, "zero amount"
	}

	descriptor := body
	if len(scan.Continuation) > 0 {
		descriptor = body + " " + strings.Join(scan.Continuation, " ")
	}

	c := models.Candidate{
		Date:       date,
		Descriptor: descriptor,
		Kind:       kind,
		CardLast4:  findCardLast4(descriptor),
		AuthCode:   findAuthCode(descriptor),
		Balance:    scan.Balance,
		Notes:      notes,
		Page:       page,
		Line:       line.Index,
	}
	if scan.Inline {
		c.Notes = append(c.Notes, "amount read from descriptor line")
	}
	if date.IsZero() {
		c.Notes = append(c.Notes, "date unknown")
	}

	switch {
	case kind == models.KindCashbackPurchase:
		c.Amount = scan.Amount.Neg()
		if m := canon.CashbackAmountPattern.FindStringSubmatch(descriptor); m != nil {
			if cb, err := models.ParseAmount(m[1]); err == nil {
				c.Cashback = &cb
			}
		} else {
			c.Notes = append(c.Notes, "cash back amount not stated")
		}
	case canon.IsCredit(body):
		c.Amount = scan.Amount
	default:
		c.Amount = scan.Amount.Neg()
	}

	return SplitCashback(c), next, ""
}
