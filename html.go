package mobi

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainText returns the book text with markup removed. Block-level elements
// and Mobipocket page breaks produce line breaks; script and style content
// is skipped.
func (d *Document) PlainText() (string, error) {
	text, err := d.Text()
	if err != nil {
		return "", err
	}
	return extractPlainText([]byte(text))
}

// BodyHTML returns the inner HTML of the <body> element, cleaned of scripts,
// styles, event handlers and unsafe URIs. Images referenced by recindex are
// inlined as data URIs. Each filepos link becomes a #fileposN fragment link
// whose target <a id="fileposN"> sits at byte offset N of the text.
func (d *Document) BodyHTML() (string, error) {
	if d.text.err != nil {
		return "", d.text.err
	}
	// filepos values are byte offsets into the undecoded text.
	marked := insertFileposAnchors(d.text.data, d.h.Encoding != EncodingCP1252)
	return extractBodyHTML([]byte(d.decode(marked)), d.imageDataURI)
}

var fileposPattern = regexp.MustCompile(`(?i)\bfilepos\s*=\s*["']?0*([0-9]{1,10})`)

// insertFileposAnchors returns raw with an empty <a id="fileposN"> element
// at every byte offset N referenced by a filepos attribute. raw itself is
// never modified. Offsets inside a tag move to the start of that tag; with
// utf8Text set, offsets inside a multibyte sequence move to its first byte.
func insertFileposAnchors(raw []byte, utf8Text bool) []byte {
	matches := fileposPattern.FindAllSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	at := make(map[int][]int) // insertion point -> target offsets
	seen := make(map[int]bool, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(string(m[1]))
		if err != nil || n > len(raw) || seen[n] {
			continue
		}
		seen[n] = true
		p := anchorPosition(raw, n, utf8Text)
		at[p] = append(at[p], n)
	}

	var buf bytes.Buffer
	buf.Grow(len(raw) + len(seen)*len(`<a id="filepos0000000000"></a>`))
	prev := 0
	for _, p := range slices.Sorted(maps.Keys(at)) {
		buf.Write(raw[prev:p])
		targets := at[p]
		slices.Sort(targets)
		for _, n := range targets {
			buf.WriteString(`<a id="filepos`)
			buf.WriteString(strconv.Itoa(n))
			buf.WriteString(`"></a>`)
		}
		prev = p
	}
	buf.Write(raw[prev:])
	return buf.Bytes()
}

// anchorPosition snaps offset n to a position where markup may be inserted.
func anchorPosition(raw []byte, n int, utf8Text bool) int {
	head := raw[:n]
	if lt := bytes.LastIndexByte(head, '<'); lt >= 0 && lt > bytes.LastIndexByte(head, '>') {
		return lt
	}
	if utf8Text {
		for n > 0 && n < len(raw) && !utf8.RuneStart(raw[n]) {
			n--
		}
	}
	return n
}

// imageDataURI resolves a 1-based recindex to a data URI holding the
// image record.
func (d *Document) imageDataURI(recindex string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(recindex))
	if err != nil || n < 1 || d.h.FirstResource == notSet {
		return "", false
	}
	idx := int64(d.h.FirstResource) + int64(n) - 1
	if idx <= 0 || idx >= int64(len(d.c.records)) {
		return "", false
	}
	data := d.c.record(int(idx))
	mediaType := imageMediaType(data)
	if mediaType == "" {
		return "", false
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), true
}

// blockTags is the set of tags that should insert a newline when encountered
// during text extraction.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Hr:         true,
}

// skipTags is the set of tags whose content should be skipped during text extraction.
var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// pageBreakTag is the Mobipocket page break element.
const pageBreakTag = "mbp:pagebreak"

var selfClosingSkipTagPattern = regexp.MustCompile(`(?is)<(script|style)\b([^>]*)/>`)

func normalizeSelfClosingSkipTags(htmlData []byte) []byte {
	if !selfClosingSkipTagPattern.Match(htmlData) {
		return htmlData
	}
	return selfClosingSkipTagPattern.ReplaceAll(htmlData, []byte(`<$1$2></$1>`))
}

// isBlockBreak reports whether the tag name ends a line of text.
func isBlockBreak(name []byte) bool {
	if blockTags[atom.Lookup(name)] {
		return true
	}
	return string(name) == pageBreakTag
}

// extractPlainText extracts the plain text content from HTML data.
func extractPlainText(htmlData []byte) (string, error) {
	htmlData = normalizeSelfClosingSkipTags(stripBOM(htmlData))
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlData))

	var buf strings.Builder
	skipDepth := 0 // depth inside a skip tag
	lastWasNewline := true

	newline := func() {
		if buf.Len() > 0 && !lastWasNewline {
			buf.WriteByte('\n')
			lastWasNewline = true
		}
	}

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			err := tokenizer.Err()
			if errors.Is(err, io.EOF) {
				return strings.TrimSpace(buf.String()), nil
			}
			return "", err

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if skipTags[atom.Lookup(tn)] {
				skipDepth++
				continue
			}
			if skipDepth == 0 && isBlockBreak(tn) {
				newline()
			}

		case html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			if skipDepth == 0 && isBlockBreak(tn) {
				newline()
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if skipTags[atom.Lookup(tn)] && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := collapseWhitespace(string(tokenizer.Text()))
			if text != "" {
				buf.WriteString(text)
				lastWasNewline = strings.HasSuffix(text, "\n")
			}
		}
	}
}

// collapseWhitespace replaces runs of whitespace characters (spaces, tabs,
// newlines) with a single space. Returns empty string if the input is all whitespace.
// Leading and trailing whitespace is preserved as a single space so that
// inter-element spacing (e.g., between inline tags) is maintained.
func collapseWhitespace(s string) string {
	var buf strings.Builder
	inSpace := false
	hasNonSpace := false
	for _, r := range s {
		if isWhitespace(r) {
			inSpace = true
			continue
		}
		if inSpace && buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteRune(r)
		inSpace = false
		hasNonSpace = true
	}
	if !hasNonSpace {
		return ""
	}
	result := buf.String()
	if len(s) > 0 && isWhitespace(rune(s[0])) {
		result = " " + result
	}
	if inSpace {
		result += " "
	}
	return result
}

// isWhitespace returns true if r is a whitespace character.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// extractBodyHTML parses the book markup, rewrites Mobipocket-specific
// markup into plain HTML and renders the children of <body>.
//
// image maps a recindex attribute value to a replacement src; it may be nil.
func extractBodyHTML(htmlData []byte, image func(recindex string) (string, bool)) (string, error) {
	doc, err := html.Parse(bytes.NewReader(stripBOM(htmlData)))
	if err != nil {
		return "", err
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		return "", nil
	}

	rw := bodyRewriter{image: image}
	rw.walk(body)

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

// findElement performs a depth-first search for a node with the given atom tag.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// bodyRewriter turns book markup into self-contained, script-free HTML.
type bodyRewriter struct {
	image func(recindex string) (string, bool)
}

// walk rewrites the subtree rooted at n in place:
//   - script and style elements are removed
//   - mbp:* elements are replaced by their children
//   - <a filepos=N> becomes a link to #fileposN
//   - <img recindex=N> gets a src from the image resolver
//   - event handlers and unsafe href/src values are dropped
func (rw bodyRewriter) walk(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type != html.ElementNode {
			continue
		}
		switch {
		case c.DataAtom == atom.Script || c.DataAtom == atom.Style:
			n.RemoveChild(c)
			continue
		case strings.HasPrefix(c.Data, "mbp:"):
			rw.walk(c)
			next = unwrap(c)
			continue
		case c.DataAtom == atom.A:
			rewriteFilepos(c)
		case c.DataAtom == atom.Img:
			rw.resolveImage(c)
		}
		sanitizeAttrs(c)
		rw.walk(c)
	}
}

// unwrap replaces n with its children and returns the node that followed n.
func unwrap(n *html.Node) *html.Node {
	parent, next := n.Parent, n.NextSibling
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
		parent.InsertBefore(c, next)
	}
	parent.RemoveChild(n)
	return next
}

func rewriteFilepos(n *html.Node) {
	pos, ok := takeAttr(n, "filepos")
	if !ok {
		return
	}
	if v, err := strconv.Atoi(strings.TrimSpace(pos)); err == nil && v >= 0 {
		setAttr(n, "href", "#filepos"+strconv.Itoa(v))
	}
}

func (rw bodyRewriter) resolveImage(n *html.Node) {
	idx, ok := takeAttr(n, "recindex")
	if !ok || rw.image == nil {
		return
	}
	if src, ok := rw.image(idx); ok {
		setAttr(n, "src", src)
	}
}

// takeAttr removes attribute key from n and returns its value.
func takeAttr(n *html.Node, key string) (string, bool) {
	for i, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return attr.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// sanitizeAttrs removes event handler attributes (on*) and unsafe
// href/src values from the node.
func sanitizeAttrs(n *html.Node) {
	kept := n.Attr[:0]
	for _, attr := range n.Attr {
		if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
			continue
		}
		if (attr.Key == "href" || attr.Key == "src") && !isSafeURI(attr.Val) {
			continue
		}
		kept = append(kept, attr)
	}
	n.Attr = kept
}

// isSafeURI validates URI values for href/src attributes.
// Allowed values:
//   - relative paths and fragments
//   - schemes: http, https, mailto
//   - data:image/*
func isSafeURI(raw string) bool {
	v := strings.TrimSpace(raw)
	if v == "" || strings.HasPrefix(v, "#") || strings.HasPrefix(v, "/") || strings.HasPrefix(v, "./") || strings.HasPrefix(v, "../") {
		return true
	}

	u, err := url.Parse(v)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	case "data":
		return strings.HasPrefix(strings.ToLower(v), "data:image/")
	default:
		return false
	}
}
