package ocr

import "time"

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language    string // default "eng"
	TessdataDir string

	DPI               int // rasterization DPI for scanned PDFs, default 200
	MaxPages          int // pages rasterized per PDF, default 5
	MinTextLayerChars int // text-layer length above which a PDF is text-native, default 50

	Timeout     time.Duration // per subprocess call; 0 disables
	ArtifactDir string        // where processed PNGs and rendered pages go
}

func (c Config) withDefaults() Config {
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Language == "" {
		c.Language = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 200
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 5
	}
	if c.MinTextLayerChars <= 0 {
		c.MinTextLayerChars = 50
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = "./tmp"
	}
	return c
}
