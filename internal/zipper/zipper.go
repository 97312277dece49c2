// Package zipper bundles the flushed per-kind output files into a single
// archive. The concrete container format is left unconstrained beyond
// envelope/ordering/metadata, so this package sticks to the standard
// library's archive/zip; see DESIGN.md for why no pack dependency covers
// password-protected ZIP.
package zipper

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
)

// Bundle writes every file in files into a new ZIP at destPath. When
// password is non-empty, each entry's bytes are AES-256-GCM sealed before
// being stored (see aesentry.go for why, instead of traditional ZipCrypto).
func Bundle(destPath string, files []string, password string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("zipper: refusing to overwrite existing archive %s", destPath)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("zipper: create %s: %w", destPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, f := range files {
		if err := addFile(zw, f, password); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zipper: finalize %s: %w", destPath, err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, password string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("zipper: read %s: %w", path, err)
	}

	name := filepath.Base(path)
	if password != "" {
		data, err = seal(password, data)
		if err != nil {
			return fmt.Errorf("zipper: seal entry %s: %w", name, err)
		}
		name += ".enc"
	}

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("zipper: add entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("zipper: write entry %s: %w", name, err)
	}
	return nil
}

// DefaultName resolves the archive filename when --ZipFilename is unset:
// "<procStart>_<?prefix_>BloodHoundResults.zip" ("...LoopResults.zip" for
// loop passes), the same "<procStart>_<?prefix_>stem" scheme every
// individual output file uses so the zip is stamped identically to its
// contents.
func DefaultName(procStart, prefix string, loopPass bool) string {
	stem := "BloodHoundResults.zip"
	if loopPass {
		stem = "BloodHoundLoopResults.zip"
	}
	name := procStart + "_"
	if prefix != "" {
		name += prefix + "_"
	}
	return name + stem
}
