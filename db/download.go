package db

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DatSource is a downloadable catalog.
type DatSource struct {
	Name     string
	URL      string
	Filename string
}

var datSources = []DatSource{
	{
		Name:     "FBNeo (Arcade only)",
		URL:      "https://raw.githubusercontent.com/libretro/FBNeo/master/dats/FinalBurn%20Neo%20(ClrMame%20Pro%20XML%2C%20Arcade%20only).dat",
		Filename: "fbneo_arcade.dat",
	},
	{
		Name:     "MAME 2003 Plus",
		URL:      "https://raw.githubusercontent.com/libretro/mame2003-plus-libretro/master/metadata/mame2003-plus.xml",
		Filename: "mame2003-plus.xml",
	},
	{
		Name:     "MAME 2000 (0.37b5)",
		URL:      "https://raw.githubusercontent.com/libretro/mame2000-libretro/master/metadata/MAME%200.37b5%20XML.dat",
		Filename: "mame2000.dat",
	},
	{
		Name:     "MAME 2003",
		URL:      "https://raw.githubusercontent.com/libretro/mame2003-libretro/master/metadata/mame2003.xml",
		Filename: "mame2003.xml",
	},
	{
		Name:     "MAME 2010",
		URL:      "https://raw.githubusercontent.com/libretro/mame2010-libretro/master/metadata/mame2010.xml",
		Filename: "mame2010.xml",
	},
	{
		Name:     "MAME 2015",
		URL:      "https://raw.githubusercontent.com/libretro/mame2015-libretro/master/metadata/mame2015-xml.zip",
		Filename: "mame2015.zip",
	},
	{
		Name:     "MAME 2016 (0.174)",
		URL:      "https://raw.githubusercontent.com/libretro/mame2016-libretro/master/metadata/MAME%200.174%20Arcade%20XML%20DAT.zip",
		Filename: "mame2016.zip",
	},
}

// DatSources returns a copy of the predefined libretro catalogs.
func DatSources() []DatSource {
	result := make([]DatSource, len(datSources))
	copy(result, datSources)
	return result
}

// FindDatSource matches a source by name or file name, ignoring case.
func FindDatSource(name string) (DatSource, bool) {
	for _, source := range datSources {
		if strings.EqualFold(source.Name, name) || strings.EqualFold(source.Filename, name) {
			return source, true
		}
	}
	return DatSource{}, false
}

type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("got a non 200 response from [%v] - %v", e.URL, e.Status)
}

type DownloadResult struct {
	Path    string
	Version string
	// KeptExisting is set when the file on disk is newer than the download.
	KeptExisting bool
}

type Downloader struct {
	client   *http.Client
	fs       afero.Fs
	logger   *zap.SugaredLogger
	attempts uint
	delay    time.Duration
}

func NewDownloader(client *http.Client, fs afero.Fs, l *zap.SugaredLogger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, fs: fs, logger: l, attempts: 3, delay: time.Second}
}

// Download fetches source into outDir. Zip payloads are replaced by the first
// DAT/XML file they contain. The payload must parse as a catalog before anything
// is written, and an existing file with a newer catalog version is kept.
func (d *Downloader) Download(ctx context.Context, source DatSource, outDir string) (*DownloadResult, error) {
	body, err := d.fetch(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	name := source.Filename
	if strings.EqualFold(filepath.Ext(name), ".zip") {
		name, body, err = extractDatFromZip(body)
		if err != nil {
			return nil, err
		}
	}

	catalog, err := ParseCatalog(bytes.NewReader(body), source.URL)
	if err != nil {
		return nil, fmt.Errorf("downloaded file is not a valid catalog: %w", err)
	}

	if err := d.fs.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create folder [%v]: %w", outDir, err)
	}
	target := filepath.Join(outDir, name)

	if existing, err := d.fs.Open(target); err == nil {
		existingVersion := readCatalogVersion(existing)
		_ = existing.Close()
		if IsOlderCatalog(existingVersion, catalog.Version) {
			d.logger.Infof("keeping [%v] version %v, download is older (%v)", target, existingVersion, catalog.Version)
			return &DownloadResult{Path: target, Version: existingVersion, KeptExisting: true}, nil
		}
	}

	if err := afero.WriteFile(d.fs, target, body, 0o644); err != nil {
		return nil, fmt.Errorf("failed to save [%v]: %w", target, err)
	}
	d.logger.Infof("Downloaded %v to [%v] (%d games)", source.Name, target, catalog.Len())
	return &DownloadResult{Path: target, Version: catalog.Version}, nil
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
			if err != nil {
				return err
			}
			resp, err := d.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				return &HTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
			}
			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(d.attempts),
		retry.Delay(d.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Warnf("download of [%v] failed (attempt %d) - %v", url, n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Client errors and cancellation are final, everything else is retried.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return true
}

func extractDatFromZip(data []byte) (string, []byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("downloaded file is not a valid zip archive: %w", err)
	}

	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".dat" && ext != ".xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, fmt.Errorf("failed to extract [%v]: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", nil, fmt.Errorf("failed to extract [%v]: %w", f.Name, err)
		}
		return filepath.Base(f.Name), content, nil
	}
	return "", nil, errors.New("no DAT or XML file found in zip archive")
}

// readCatalogVersion reads only up to the catalog header.
func readCatalogVersion(r io.Reader) string {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader
	sawRoot := false
	for {
		token, err := decoder.Token()
		if err != nil {
			return ""
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if !sawRoot {
			sawRoot = true
			if v := catalogVersionFromBuild(attrValue(start, "build")); v != "" {
				return v
			}
			continue
		}
		if start.Name.Local != "header" {
			return ""
		}
		header := datHeader{}
		if err := decoder.DecodeElement(&header, &start); err != nil {
			return ""
		}
		return strings.TrimSpace(header.Version)
	}
}
