package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/scaffoldkit/scaffoldkit/internal/branding"
	"github.com/scaffoldkit/scaffoldkit/internal/errs"
)

// download streams url into destPath, printing a percent meter when the
// server reports a length.
func (p *Provisioner) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrap(errs.EFetch, "creating download request", err)
	}
	req.Header.Set("User-Agent", branding.UserAgent())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ctxErr(ctx, errs.EFetch, "downloading "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.WrapWithDetails(errs.EFetch, "download failed", fmt.Errorf("status %d", resp.StatusCode),
			map[string]string{"url": url, "status": strconv.Itoa(resp.StatusCode)})
	}

	f, err := os.Create(destPath)
	if err != nil {
		return errs.Wrap(errs.EFetch, "creating download file", err)
	}
	defer f.Close()

	total := resp.ContentLength
	var downloaded int64
	lastPercent := -1

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return errs.Wrap(errs.EFetch, "writing download", writeErr)
			}
			downloaded += int64(n)
			if total > 0 {
				percent := int(downloaded * 100 / total)
				if percent != lastPercent {
					fmt.Fprintf(p.progress, "\rDownloading... %d%%", percent)
					lastPercent = percent
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return ctxErr(ctx, errs.EFetch, "reading download stream", readErr)
		}
	}
	if total > 0 {
		fmt.Fprintln(p.progress)
		if downloaded != total {
			return errs.Newf(errs.EFetch, "download truncated: got %d of %d bytes", downloaded, total)
		}
	}

	if err := f.Close(); err != nil {
		return errs.Wrap(errs.EFetch, "closing download file", err)
	}
	return nil
}

// verifyChecksum compares the sha256 of archivePath with want.
func verifyChecksum(archivePath, want string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errs.Wrap(errs.EExtract, "opening archive for checksum", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return errs.Wrap(errs.EExtract, "computing checksum", err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, want) {
		return errs.WrapWithDetails(errs.EExtract, "checksum mismatch", nil,
			map[string]string{"expected": strings.ToLower(want), "actual": got})
	}
	return nil
}
