// Package outlook reads Outlook .msg files, which are compound binary (OLE2) containers
// holding one stream per MAPI property.
package outlook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"golang.org/x/net/html"

	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/infrastructure/extractor/plaintext"
)

const (
	substgPrefix = "__substg1.0_"
	attachPrefix = "__attach_version1.0_"
)

// Single property streams larger than this are skipped.
const maxStreamBytes = 32 << 20

// MAPI property tags.
const (
	tagSubject        = 0x0037
	tagSenderName     = 0x0C1A
	tagSenderEmail    = 0x0C1F
	tagSenderSMTP     = 0x5D01
	tagDisplayTo      = 0x0E04
	tagDisplayCc      = 0x0E03
	tagBody           = 0x1000
	tagBodyHTML       = 0x1013
	tagAttachFilename = 0x3704
	tagAttachLongName = 0x3707
	typeUnicode       = 0x001F
	typeString8       = 0x001E
	typeBinary        = 0x0102
)

// Message is the subset of an Outlook message that is rendered for analysis.
type Message struct {
	Subject     string
	SenderName  string
	SenderEmail string
	To          string
	Cc          string
	Body        string
	Attachments []string
}

// Extractor renders the header fields and body of a .msg file.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, file domain.UploadedFile) (domain.ExtractedDocument, error) {
	msg, err := ReadMessage(ctx, file.Data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ExtractedDocument{}, ctxErr
		}
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, err)
	}

	text := msg.Render()
	if strings.TrimSpace(msg.Subject+msg.Body) == "" {
		return domain.ExtractedDocument{}, domain.UnsupportedFormat(file.Filename, errors.New("message has no subject or body"))
	}

	return domain.ExtractedDocument{
		Filename: file.Filename,
		Kind:     domain.KindMessage,
		Text:     text,
		Summary: domain.StructureSummary{
			Rows: strings.Count(msg.Body, "\n") + 1,
		},
		Attachments: msg.Attachments,
	}, nil
}

// Render lays the message out as "Subject: ...\nFrom: ...\nBody: ..." with optional To, Cc
// and attachment lines.
func (m Message) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", m.Subject)
	from := m.SenderName
	switch {
	case from == "":
		from = m.SenderEmail
	case m.SenderEmail != "" && !strings.EqualFold(m.SenderEmail, m.SenderName):
		from = fmt.Sprintf("%s <%s>", m.SenderName, m.SenderEmail)
	}
	fmt.Fprintf(&b, "From: %s\n", from)
	if m.To != "" {
		fmt.Fprintf(&b, "To: %s\n", m.To)
	}
	if m.Cc != "" {
		fmt.Fprintf(&b, "Cc: %s\n", m.Cc)
	}
	fmt.Fprintf(&b, "Body: %s", m.Body)
	if len(m.Attachments) > 0 {
		fmt.Fprintf(&b, "\nAttachments: %s", strings.Join(m.Attachments, ", "))
	}
	return b.String()
}

// ReadMessage decodes the top-level property streams and attachment names of a .msg file.
func ReadMessage(ctx context.Context, data []byte) (Message, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return Message{}, fmt.Errorf("open compound file: %w", err)
	}

	var (
		msg         Message
		htmlBody    []byte
		properties  int
		attachNames = map[string]string{}
		attachOrder []string
	)
	for entry, err := doc.Next(); err != io.EOF; entry, err = doc.Next() {
		if err != nil {
			return Message{}, fmt.Errorf("walk compound file: %w", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}
		tag, typ, ok := parseStreamName(entry.Name)
		if !ok || entry.Size > maxStreamBytes {
			continue
		}

		switch len(entry.Path) {
		case 0:
			properties++
			raw, err := readStream(entry)
			if err != nil {
				return Message{}, err
			}
			if tag == tagBodyHTML && typ == typeBinary {
				htmlBody = raw
				continue
			}
			value := decodeString(raw, typ)
			switch tag {
			case tagSubject:
				msg.Subject = strings.TrimSpace(value)
			case tagSenderName:
				msg.SenderName = strings.TrimSpace(value)
			case tagSenderSMTP:
				msg.SenderEmail = strings.TrimSpace(value)
			case tagSenderEmail:
				if msg.SenderEmail == "" {
					msg.SenderEmail = strings.TrimSpace(value)
				}
			case tagDisplayTo:
				msg.To = strings.TrimSpace(value)
			case tagDisplayCc:
				msg.Cc = strings.TrimSpace(value)
			case tagBody:
				msg.Body = strings.TrimSpace(normalizeNewlines(value))
			}
		case 1:
			if !strings.HasPrefix(entry.Path[0], attachPrefix) {
				continue
			}
			if tag != tagAttachLongName && tag != tagAttachFilename {
				continue
			}
			raw, err := readStream(entry)
			if err != nil {
				return Message{}, err
			}
			name := strings.TrimSpace(decodeString(raw, typ))
			if name == "" {
				continue
			}
			key := entry.Path[0]
			if _, seen := attachNames[key]; !seen {
				attachOrder = append(attachOrder, key)
			}
			if tag == tagAttachLongName || attachNames[key] == "" {
				attachNames[key] = name
			}
		}
	}

	if properties == 0 {
		return Message{}, errors.New("compound file holds no message properties")
	}
	if msg.Body == "" && len(htmlBody) > 0 {
		msg.Body = htmlToText(htmlBody)
	}
	for _, key := range attachOrder {
		msg.Attachments = append(msg.Attachments, attachNames[key])
	}
	return msg, nil
}

// parseStreamName splits "__substg1.0_TTTTYYYY" into property tag and type.
func parseStreamName(name string) (tag, typ uint16, ok bool) {
	if !strings.HasPrefix(name, substgPrefix) || len(name) < len(substgPrefix)+8 {
		return 0, 0, false
	}
	id := name[len(substgPrefix) : len(substgPrefix)+8]
	tagValue, err := strconv.ParseUint(id[:4], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	typeValue, err := strconv.ParseUint(id[4:], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(tagValue), uint16(typeValue), true
}

func readStream(entry *mscfb.File) ([]byte, error) {
	buf := make([]byte, entry.Size)
	if _, err := io.ReadFull(entry, buf); err != nil {
		return nil, fmt.Errorf("read stream %s: %w", entry.Name, err)
	}
	return buf, nil
}

func decodeString(raw []byte, typ uint16) string {
	switch typ {
	case typeUnicode:
		return decodeUTF16LE(raw)
	case typeString8:
		raw = bytes.TrimRight(raw, "\x00")
		text, err := plaintext.DecodeText(raw, "")
		if err != nil {
			return ""
		}
		return text
	default:
		return ""
	}
}

func decodeUTF16LE(raw []byte) string {
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		units = append(units, uint16(raw[i])|uint16(raw[i+1])<<8)
	}
	for len(units) > 0 && units[len(units)-1] == 0 {
		units = units[:len(units)-1]
	}
	return string(utf16.Decode(units))
}

var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// htmlToText keeps the visible text of an HTML body, one block per line.
func htmlToText(raw []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(raw))
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseBlankLines(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			case "br", "p", "div", "tr", "li":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			case "p", "div", "tr", "li":
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.WriteString(lineBreaks.Replace(string(tokenizer.Text())))
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
