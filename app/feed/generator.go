package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"time"

	"github.com/gktp0528-oss/europe-market-sub001/app/cfg"
)

// Listing identifies the feed a generated channel describes.
type Listing struct {
	Category    CategoryInfo
	CountryCode string
	CountryName string
	Search      string
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(listing Listing, posts []Post) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	title := fmt.Sprintf("Eurosari %s", listing.Category.Label)
	if listing.CountryName != "" {
		title = fmt.Sprintf("%s - %s", title, listing.CountryName)
	}
	if listing.Search != "" {
		title = fmt.Sprintf("%s (%s)", title, listing.Search)
	}
	g.writeElement(&buf, "title", title, 4)

	query := url.Values{}
	if listing.CountryCode != "" {
		query.Set("country", listing.CountryCode)
	}
	if listing.Search != "" {
		query.Set("q", listing.Search)
	}
	feedPath := fmt.Sprintf("/api/feeds/%s", listing.Category.Category)
	g.writeElement(&buf, "link", g.absoluteURL(feedPath, query), 4)
	g.writeElement(&buf, "description", fmt.Sprintf("유럽 한인 %s 최신 게시글", listing.Category.Label), 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.absoluteURL(feedPath+"/rss", query))))

	lastBuildDate := time.Now().In(time.Local)
	if len(posts) > 0 {
		lastBuildDate = cmp.Or(posts[0].CreatedAt, lastBuildDate)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Eurosari/%s", cfg.Get().Version), 4)
	g.writeElement(&buf, "language", "ko", 4)

	for _, post := range posts {
		g.writeItem(&buf, post)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, post Post) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(post.ID.String()))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", post.Title, 6)
	g.writeElement(buf, "link", g.absoluteURL("/api/posts/"+post.ID.String(), nil), 6)
	g.writeElement(buf, "description", cmp.Or(post.Description, "설명이 없습니다"), 6)
	g.writeElement(buf, "pubDate", post.CreatedAt.Format(time.RFC1123Z), 6)

	g.writeElement(buf, "category", post.Category.Info().Label, 6)
	if post.Location != "" {
		g.writeElement(buf, "category", post.Location, 6)
	}
	if post.Price != nil {
		price := strconv.FormatFloat(*post.Price, 'f', -1, 64)
		g.writeElement(buf, "category", cmp.Or(post.Currency, "€")+price, 6)
	}
	for _, tag := range post.Tags {
		if tag != "" {
			g.writeElement(buf, "category", tag, 6)
		}
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) absoluteURL(path string, query url.Values) string {
	base := cfg.Get().BaseUrl
	if base == "" {
		base = fmt.Sprintf("http://localhost:%s", cfg.Get().Port)
	}
	if len(query) == 0 {
		return base + path
	}
	return base + path + "?" + query.Encode()
}
