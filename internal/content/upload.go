package content

import (
	"context"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/jun/repocms/internal/errors"
	"github.com/jun/repocms/internal/model"
)

// UploadBinary stores an image under UploadRoot/YYYY/MM/DD/<sanitized name>
// and returns its site URL plus the derived image-resizing URLs. An upload
// with the same name on the same day replaces the earlier file.
func (g *Gateway) UploadBinary(ctx context.Context, filename string, data []byte, message string) (*model.Upload, error) {
	name := SanitizeFilename(filename)
	if strings.Trim(name, ".") == "" {
		return nil, apperrors.BadRequest("invalid file name")
	}

	p := path.Join(g.cfg.UploadRoot, g.now().UTC().Format("2006/01/02"), name)
	if message == "" {
		message = "Upload image " + p + " via CMS"
	}
	res, err := g.Write(ctx, WriteRequest{Path: p, Content: data, Message: message})
	if err != nil {
		return nil, err
	}

	site := "/" + res.Path
	prefix := g.cfg.ImageResizePrefix
	return &model.Upload{
		Path:      res.Path,
		Original:  site,
		Optimized: prefix + "/quality=85" + site,
		WebP:      prefix + "/format=webp" + site,
		Thumb:     prefix + "/width=200,quality=70" + site,
	}, nil
}

// SanitizeFilename drops any directory part, folds accents to their base
// letters and replaces every remaining character outside [A-Za-z0-9._-]
// with "_".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(stripMarks, name); err == nil {
		name = folded
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
}
