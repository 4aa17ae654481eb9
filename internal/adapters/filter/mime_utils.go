package filter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/encryptgate/threat-engine/internal/core"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// ParseMessage parses a raw RFC 5322 message into the engine's Email input.
// Sender and recipients default to the From/To headers when not supplied by
// the transport.
func ParseMessage(raw []byte, sender string, recipients []string) (*core.Email, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	if sender == "" {
		if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
			sender = addr.Address
		}
	}
	if len(recipients) == 0 {
		if addrs, err := msg.Header.AddressList("To"); err == nil {
			for _, a := range addrs {
				recipients = append(recipients, a.Address)
			}
		}
	}

	return buildEmail(msg, sender, recipients, "")
}

// buildEmail turns a parsed message into the engine's Email input
func buildEmail(msg *mail.Message, sender string, recipients []string, remoteIP string) (*core.Email, error) {
	text, attachments, err := extractContent(msg)
	if err != nil {
		return nil, err
	}

	email := &core.Email{
		MessageID:   strings.Trim(msg.Header.Get("Message-Id"), "<>"),
		From:        sender,
		FromIP:      remoteIP,
		To:          recipients,
		Body:        text,
		URLs:        extractURLs(text),
		Attachments: attachments,
		Headers:     map[string][]string(msg.Header),
		ReceivedAt:  time.Now(),
	}

	if subject := msg.Header.Get("Subject"); subject != "" {
		email.Subject = decodeEncodedHeader(subject)
	}
	return email, nil
}

// extractContent pulls the plain-text body and the attachment list out of
// a message. Nested multiparts are walked one level deep.
func extractContent(msg *mail.Message) (string, []core.Attachment, error) {
	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		body, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", nil, err
		}
		return string(decodeTransferEncoding(body, msg.Header.Get("Content-Transfer-Encoding"))), nil, nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		body, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", nil, err
		}
		return string(body), nil, nil
	}

	var text bytes.Buffer
	var attachments []core.Attachment
	walkParts(multipart.NewReader(msg.Body, boundary), &text, &attachments, 0)

	if text.Len() == 0 && len(attachments) == 0 {
		return "[No text content found in multipart message]", nil, nil
	}
	return text.String(), attachments, nil
}

func walkParts(mr *multipart.Reader, text *bytes.Buffer, attachments *[]core.Attachment, depth int) {
	if depth > 2 {
		return
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return
		}

		partType, partParams, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		filename := part.FileName()

		switch {
		case filename != "":
			content, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			*attachments = append(*attachments, core.Attachment{
				Filename: decodeEncodedHeader(filename),
				Content:  decodeTransferEncoding(content, part.Header.Get("Content-Transfer-Encoding")),
			})
		case strings.HasPrefix(partType, "multipart/"):
			if boundary, ok := partParams["boundary"]; ok {
				walkParts(multipart.NewReader(part, boundary), text, attachments, depth+1)
			}
		case partType == "text/plain" || partType == "":
			content, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			text.Write(decodeTransferEncoding(content, part.Header.Get("Content-Transfer-Encoding")))
			text.WriteString("\n")
		}
	}
}

// decodeTransferEncoding decodes base64 and quoted-printable bodies; any
// other encoding is passed through untouched
func decodeTransferEncoding(content []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		// Line endings vary by source: CRLF over SMTP, bare LF from files
		// piped into the CLI
		compact := bytes.Map(func(r rune) rune {
			switch r {
			case '\r', '\n', '\t', ' ':
				return -1
			}
			return r
		}, content)
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
		n, err := base64.StdEncoding.Decode(decoded, compact)
		if err != nil {
			return content
		}
		return decoded[:n]
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(content)))
		if err != nil {
			return content
		}
		return decoded
	default:
		return content
	}
}

// decodeEncodedHeader decodes RFC 2047 encoded words, resolving non-UTF-8
// charsets through the IANA index
func decodeEncodedHeader(value string) string {
	decoder := mime.WordDecoder{
		CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := ianaindex.MIME.Encoding(charset)
			if err != nil || enc == nil {
				return input, nil
			}
			return transform.NewReader(input, enc.NewDecoder()), nil
		},
	}
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractURLs returns the URLs found in the message text, in order of first
// appearance
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
