package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// RenderError reports a template/data mismatch during document generation.
// It is a soft failure for the caller to collect or surface, never a panic.
type RenderError struct {
	Token string
	Cause error
}

func (e *RenderError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("template token %s has no value in the data context", e.Token)
	}
	return fmt.Sprintf("render document: %v", e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// renderDocx rebuilds the template archive with a transformed
// word/document.xml. The template bytes are never modified; every render
// produces a fresh archive.
func renderDocx(templateBytes []byte, apply func(root *xmlNode) error) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(templateBytes), int64(len(templateBytes)))
	if err != nil {
		return nil, &RenderError{Cause: fmt.Errorf("open template: %w", err)}
	}

	var output bytes.Buffer
	writer := zip.NewWriter(&output)

	sawDocument := false
	for _, file := range reader.File {
		content, err := readZipFile(file)
		if err != nil {
			return nil, &RenderError{Cause: fmt.Errorf("read %s: %w", file.Name, err)}
		}
		if normalizeZipName(file.Name) == "word/document.xml" {
			sawDocument = true
			content, err = transformDocumentXML(content, apply)
			if err != nil {
				return nil, err
			}
		}
		if err := writeZipFile(writer, file, content); err != nil {
			return nil, &RenderError{Cause: fmt.Errorf("write %s: %w", file.Name, err)}
		}
	}
	if !sawDocument {
		return nil, &RenderError{Cause: fmt.Errorf("template has no word/document.xml")}
	}

	if err := writer.Close(); err != nil {
		return nil, &RenderError{Cause: err}
	}

	return output.Bytes(), nil
}

func transformDocumentXML(content []byte, apply func(root *xmlNode) error) ([]byte, error) {
	xmlText := string(content)
	rootStart, rootEnd, err := extractRootTags(xmlText)
	if err != nil {
		return nil, &RenderError{Cause: err}
	}
	root, header, err := parseXMLDocument(xmlText)
	if err != nil {
		return nil, &RenderError{Cause: err}
	}

	templateTokens := collectTokens(root)

	if err := apply(root); err != nil {
		return nil, err
	}
	expandLineBreaks(root)

	if token := findRemainingToken(root, templateTokens); token != "" {
		return nil, &RenderError{Token: token}
	}

	out, err := encodeXMLDocument(header, root, rootStart, rootEnd)
	if err != nil {
		return nil, &RenderError{Cause: err}
	}

	return []byte(out), nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeZipFile(writer *zip.Writer, source *zip.File, content []byte) error {
	header := source.FileHeader
	header.Name = normalizeZipName(source.Name)

	dst, err := writer.CreateHeader(&header)
	if err != nil {
		return err
	}
	_, err = dst.Write(content)
	return err
}

func normalizeZipName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
