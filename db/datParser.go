package db

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"
)

// Screen element shared by FinalBurn Neo <video>, MAME 2003 <video> and MAME <display>.
type datScreen struct {
	Type        string `xml:"type,attr"`
	Screen      string `xml:"screen,attr"`
	Rotate      string `xml:"rotate,attr"`
	Orientation string `xml:"orientation,attr"`
	Width       string `xml:"width,attr"`
	Height      string `xml:"height,attr"`
}

type datGame struct {
	Name         string      `xml:"name,attr"`
	CloneOf      string      `xml:"cloneof,attr"`
	Description  string      `xml:"description"`
	Year         string      `xml:"year"`
	Manufacturer string      `xml:"manufacturer"`
	Displays     []datScreen `xml:"display"`
	Videos       []datScreen `xml:"video"`
}

type datHeader struct {
	Name    string `xml:"name"`
	Version string `xml:"version"`
}

// LoadCatalog parses the DAT file at path.
func LoadCatalog(fs afero.Fs, path string) (*Catalog, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, &NotFoundError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &NotFoundError{Path: path, Err: errors.New("is a directory")}
	}

	file, err := fs.Open(path)
	if err != nil {
		return nil, &NotFoundError{Path: path, Err: err}
	}
	defer file.Close()

	return ParseCatalog(file, path)
}

// ParseCatalog decodes a ClrMamePro/FinalBurn Neo or MAME XML catalog.
// Only the game name is required; every other field is optional.
func ParseCatalog(r io.Reader, path string) (*Catalog, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	var entries []GameEntry
	version := ""
	sawRoot := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newParseError(path, decoder, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		if !sawRoot {
			sawRoot = true
			version = catalogVersionFromBuild(attrValue(start, "build"))
			continue
		}

		switch start.Name.Local {
		case "header":
			header := datHeader{}
			if err := decoder.DecodeElement(&header, &start); err != nil {
				return nil, newParseError(path, decoder, err)
			}
			if version == "" {
				version = strings.TrimSpace(header.Version)
			}
		case "game", "machine":
			game := datGame{}
			if err := decoder.DecodeElement(&game, &start); err != nil {
				return nil, newParseError(path, decoder, err)
			}
			if strings.TrimSpace(game.Name) == "" {
				line, _ := decoder.InputPos()
				return nil, &ParseError{Path: path, Line: line, Err: fmt.Errorf("<%v> element without a name", start.Name.Local)}
			}
			entries = append(entries, game.toEntry())
		}
	}

	if !sawRoot {
		return nil, &ParseError{Path: path, Err: errors.New("no root element")}
	}

	catalog := NewCatalog(path, version, entries)
	zap.S().Infof("Found %d games (%d with resolution data) in [%v]", catalog.Len(), catalog.WithResolution(), path)
	if catalog.Len() != 0 && catalog.WithResolution() == 0 {
		zap.S().Warnf("Catalog [%v] has no display/video information, use a DAT that includes resolution data", path)
	}
	return catalog, nil
}

func (g datGame) toEntry() GameEntry {
	entry := GameEntry{
		Name:         strings.TrimSpace(g.Name),
		Description:  strings.TrimSpace(g.Description),
		Year:         strings.TrimSpace(g.Year),
		Manufacturer: strings.TrimSpace(g.Manufacturer),
		CloneOf:      strings.TrimSpace(g.CloneOf),
	}

	screen, ok := g.screen()
	if !ok {
		return entry
	}

	entry.Orientation = screen.orientation()
	entry.ScreenType = screen.Type
	if entry.ScreenType == "" {
		entry.ScreenType = screen.Screen
	}

	if screen.Width == "" && screen.Height == "" {
		return entry
	}
	width, widthErr := strconv.Atoi(strings.TrimSpace(screen.Width))
	height, heightErr := strconv.Atoi(strings.TrimSpace(screen.Height))
	if widthErr != nil || heightErr != nil || width <= 0 || height <= 0 {
		zap.S().Warnf("Invalid resolution for %v: %vx%v", entry.Name, screen.Width, screen.Height)
		return entry
	}
	entry.Width = width
	entry.Height = height
	return entry
}

// screen picks the first <display> with a size, then the first <video> with a
// size, then whatever screen element exists.
func (g datGame) screen() (datScreen, bool) {
	for _, s := range g.Displays {
		if s.Width != "" && s.Height != "" {
			return s, true
		}
	}
	for _, s := range g.Videos {
		if s.Width != "" && s.Height != "" {
			return s, true
		}
	}
	if len(g.Displays) != 0 {
		return g.Displays[0], true
	}
	if len(g.Videos) != 0 {
		return g.Videos[0], true
	}
	return datScreen{}, false
}

func (s datScreen) orientation() Orientation {
	switch strings.ToLower(strings.TrimSpace(s.Orientation)) {
	case "vertical":
		return ORIENTATION_VERTICAL
	case "horizontal":
		return ORIENTATION_HORIZONTAL
	}
	switch strings.TrimSpace(s.Rotate) {
	case "90", "270":
		return ORIENTATION_VERTICAL
	case "0", "180":
		return ORIENTATION_HORIZONTAL
	}
	return ORIENTATION_UNKNOWN
}

func attrValue(start xml.StartElement, name string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %v", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

func newParseError(path string, decoder *xml.Decoder, err error) *ParseError {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{Path: path, Line: syntaxErr.Line, Err: err}
	}
	line, _ := decoder.InputPos()
	return &ParseError{Path: path, Line: line, Err: err}
}
