// Package extractor reads statement documents into text pages for the
// parser. Plain text exports are split on form feeds; PDFs are read page by
// page with github.com/ledongthuc/pdf.
package extractor

import (
	"os"
	"path/filepath"
	"strings"

	ledgererrors "statement-ledger/pkg/errors"
	"statement-ledger/pkg/logger"
)

// Document is the text of one statement file
type Document struct {
	Path  string
	Pages []string
}

// Supported reports whether the path has an extension Load understands
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}

// Load reads a statement document by extension
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ledgererrors.FileError(ledgererrors.CodeFileNotFound, path, err)
		}
		return nil, ledgererrors.FileError(ledgererrors.CodeFilePermission, path, err)
	}
	if info.IsDir() {
		return nil, ledgererrors.FileError(ledgererrors.CodeUnsupportedType, path, nil)
	}

	var pages []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		pages, err = readText(path)
	case ".pdf":
		pages, err = readPDF(path)
	default:
		return nil, ledgererrors.FileError(ledgererrors.CodeUnsupportedType, path, nil)
	}
	if err != nil {
		return nil, ledgererrors.ParseError(ledgererrors.CodeUnreadableDocument, path, err)
	}

	logger.WithComponent("extractor").WithFields(logger.Fields{
		"file":  path,
		"pages": len(pages),
	}).Debug("Loaded statement text")

	return &Document{Path: path, Pages: pages}, nil
}

// LoadAll reads every document in order, flattening their pages. Pages keep
// file order so the date context carries from one file into the next.
func LoadAll(paths []string) ([]*Document, []string, error) {
	docs := make([]*Document, 0, len(paths))
	var pages []string
	for _, path := range paths {
		doc, err := Load(path)
		if err != nil {
			return nil, nil, err
		}
		docs = append(docs, doc)
		pages = append(pages, doc.Pages...)
	}
	return docs, pages, nil
}

// SplitPages splits statement text on form feeds, dropping blank pages
func SplitPages(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var pages []string
	for _, page := range strings.Split(text, "\f") {
		if strings.TrimSpace(page) == "" {
			continue
		}
		pages = append(pages, page)
	}
	return pages
}

func readText(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pages := SplitPages(string(data))
	if len(pages) == 0 {
		return nil, errEmptyDocument
	}
	return pages, nil
}
