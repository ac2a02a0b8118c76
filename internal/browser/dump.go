package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	urlutil "github.com/law-makers/ordercrawl/internal/utils/url"
	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// WriteDump stores page as <id>.html, a readable <id>.md and, when png is
// not empty, <id>.png under dir. The random id is returned.
func WriteDump(dir string, page models.Page, png []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create dump directory: %w", err)
	}

	id := uuid.NewString()
	base := filepath.Join(dir, id)

	raw := fmt.Sprintf("<!-- %s -->\n%s", page.URL, page.HTML)
	if err := os.WriteFile(base+".html", []byte(raw), 0600); err != nil {
		return "", fmt.Errorf("failed to write dump: %w", err)
	}

	if text, err := Markdown(page); err != nil {
		log.Debug().Err(err).Msg("Markdown conversion of dump failed")
	} else if err := os.WriteFile(base+".md", []byte(text), 0600); err != nil {
		return "", fmt.Errorf("failed to write dump: %w", err)
	}

	if len(png) > 0 {
		if err := os.WriteFile(base+".png", png, 0600); err != nil {
			return "", fmt.Errorf("failed to write screenshot: %w", err)
		}
	}

	log.Debug().Str("dir", dir).Str("id", id).Msg("Page dumped")
	return id, nil
}

// Markdown renders the readable part of a page, with links made absolute
func Markdown(page models.Page) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, ok := selec.Attr("href")
			if !ok {
				return nil
			}
			str := fmt.Sprintf("[%s](%s)", strings.TrimSpace(selec.Text()), urlutil.ResolveURL(page.URL, href))
			return &str
		},
	})

	cleaned, err := CleanHTML(page.HTML)
	if err != nil {
		return "", err
	}
	return converter.ConvertString(cleaned)
}

// CleanHTML drops scripts, styles and most attributes. Forms are kept since
// a dump of the login wall is only useful with its inputs.
func CleanHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, link, meta, noscript, iframe, svg, canvas").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		node := s.Nodes[0]
		var kept []html.Attribute
		for _, attr := range node.Attr {
			switch {
			case node.Data == "a" && (attr.Key == "href" || attr.Key == "title"):
			case node.Data == "img" && (attr.Key == "src" || attr.Key == "alt"):
			case node.Data == "input" && (attr.Key == "id" || attr.Key == "name" || attr.Key == "type"):
			case attr.Key == "class":
			default:
				continue
			}
			kept = append(kept, attr)
		}
		node.Attr = kept
	})

	out, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
