package format

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrInvalidLinkType    = errors.New("invalid link type")
	ErrInvalidDisplaySize = errors.New("invalid display size")
)

// LinkType selects how an uploaded image link is printed.
type LinkType int

const (
	LinkImage LinkType = iota
	LinkDirect
	LinkMarkdown
	LinkHTML
	LinkBBCode
	LinkLinkedBBCode
)

var linkTypeNames = []string{"image", "direct", "markdown", "html", "bbcode", "linked-bbcode"}

// LinkTypeNames lists the accepted --link-type values.
func LinkTypeNames() []string {
	return append([]string(nil), linkTypeNames...)
}

func (t LinkType) String() string {
	if t < 0 || int(t) >= len(linkTypeNames) {
		return fmt.Sprintf("LinkType(%d)", int(t))
	}
	return linkTypeNames[t]
}

// ParseLinkType converts a user-facing name into a LinkType.
func ParseLinkType(raw string) (LinkType, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "linkedbbcode", "linked_bbcode":
		value = "linked-bbcode"
	}
	for i, name := range linkTypeNames {
		if name == value {
			return LinkType(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q (allowed: %s)", ErrInvalidLinkType, raw, strings.Join(linkTypeNames, ", "))
}

// DisplaySize selects a thumbnail variant of the hosted image.
type DisplaySize int

const (
	SizeOriginal DisplaySize = iota
	SizeSmallSquare
	SizeBigSquare
	SizeSmallThumbnail
	SizeMediumThumbnail
	SizeLargeThumbnail
	SizeHugeThumbnail
)

type sizeInfo struct {
	code   string
	name   string
	suffix string
}

var sizes = []sizeInfo{
	{code: "o", name: "original", suffix: ""},
	{code: "s", name: "small-square", suffix: "s"},
	{code: "b", name: "big-square", suffix: "b"},
	{code: "t", name: "small-thumbnail", suffix: "t"},
	{code: "m", name: "medium-thumbnail", suffix: "m"},
	{code: "l", name: "large-thumbnail", suffix: "l"},
	{code: "h", name: "huge-thumbnail", suffix: "h"},
}

// DisplaySizeCodes lists the accepted --display-size codes.
func DisplaySizeCodes() []string {
	out := make([]string, 0, len(sizes))
	for _, s := range sizes {
		out = append(out, s.code)
	}
	return out
}

func (s DisplaySize) valid() bool {
	return s >= 0 && int(s) < len(sizes)
}

func (s DisplaySize) String() string {
	if !s.valid() {
		return fmt.Sprintf("DisplaySize(%d)", int(s))
	}
	return sizes[s].name
}

// Code returns the single-letter code of the size.
func (s DisplaySize) Code() string {
	if !s.valid() {
		return ""
	}
	return sizes[s].code
}

// Suffix returns the marker inserted before the file extension.
func (s DisplaySize) Suffix() string {
	if !s.valid() {
		return ""
	}
	return sizes[s].suffix
}

// ParseDisplaySize accepts either the single-letter code or the long name.
func ParseDisplaySize(raw string) (DisplaySize, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for i, s := range sizes {
		if value == s.code || value == s.name {
			return DisplaySize(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q (allowed: %s)", ErrInvalidDisplaySize, raw, strings.Join(DisplaySizeCodes(), ", "))
}

// Link renders url in the requested link type. Every type except LinkImage
// points at the size variant of the image.
func Link(url string, linkType LinkType, size DisplaySize) string {
	if linkType == LinkImage {
		return url
	}

	base, ext := splitExt(url)
	direct := base + size.Suffix() + ext

	switch linkType {
	case LinkMarkdown:
		return fmt.Sprintf("[Imgur](%s)", direct)
	case LinkHTML:
		return fmt.Sprintf(`<a href="%s"><img src="%s" title="source: imgur.com" /></a>`, url, direct)
	case LinkBBCode:
		return fmt.Sprintf("[img]%s[/img]", direct)
	case LinkLinkedBBCode:
		return fmt.Sprintf("[url=%s][img]%s[/img][/url]", url, direct)
	default:
		return direct
	}
}

// splitExt only looks at the last path segment so dots in the host name are
// never mistaken for an extension.
func splitExt(url string) (string, string) {
	slash := strings.LastIndex(url, "/")
	ext := path.Ext(url[slash+1:])
	return strings.TrimSuffix(url, ext), ext
}
