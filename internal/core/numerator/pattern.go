package numerator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"docseq/internal/core/apperror"
)

// MaxRunWidth is the widest running-number run a pattern may declare.
// Wider runs could not be represented by an int64 counter.
const MaxRunWidth = 18

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenYear4
	tokenYear2
	tokenMonth
	tokenDay
	tokenRun
)

type segment struct {
	kind tokenKind
	text string // literal text for tokenLiteral
}

// Pattern is a compiled numbering template such as "QT-YYYY-XXXX".
//
// Recognized tokens are YYYY, YY, MM, DD and exactly one run of X characters.
// Everything else is literal text. Patterns are immutable and safe for
// concurrent use.
type Pattern struct {
	source   string
	segments []segment
	width    int
	matcher  *regexp.Regexp

	hasYear  bool
	hasMonth bool
	hasDay   bool
}

// Compile parses pattern and builds its matcher and renderer.
// It fails with INVALID_PATTERN instead of falling back to a default.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, apperror.NewInvalidPattern(pattern, "pattern is empty")
	}
	if !utf8.ValidString(pattern) {
		return nil, apperror.NewInvalidPattern(strings.ToValidUTF8(pattern, "\uFFFD"), "pattern is not valid UTF-8")
	}

	p := &Pattern{source: pattern}
	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			p.segments = append(p.segments, segment{kind: tokenLiteral, text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(pattern); {
		c := pattern[i]
		if c < 0x20 || c == ' ' || c == 0x7f {
			return nil, apperror.NewInvalidPattern(pattern, "whitespace and control characters are not allowed").
				WithDetail("position", i)
		}

		run := runLength(pattern, i)
		switch c {
		case 'X':
			if p.width > 0 {
				return nil, apperror.NewInvalidPattern(pattern, "only one running-number run (X...) is allowed")
			}
			if run > MaxRunWidth {
				return nil, apperror.NewInvalidPattern(pattern,
					fmt.Sprintf("running-number run is wider than %d digits", MaxRunWidth))
			}
			flush()
			p.width = run
			p.segments = append(p.segments, segment{kind: tokenRun})
		case 'Y':
			switch run {
			case 1:
				literal.WriteByte(c)
			case 2:
				flush()
				p.hasYear = true
				p.segments = append(p.segments, segment{kind: tokenYear2})
			case 4:
				flush()
				p.hasYear = true
				p.segments = append(p.segments, segment{kind: tokenYear4})
			default:
				return nil, apperror.NewInvalidPattern(pattern, "year token must be YY or YYYY").
					WithDetail("position", i)
			}
		case 'M', 'D':
			switch run {
			case 1:
				literal.WriteByte(c)
			case 2:
				flush()
				if c == 'M' {
					p.hasMonth = true
					p.segments = append(p.segments, segment{kind: tokenMonth})
				} else {
					p.hasDay = true
					p.segments = append(p.segments, segment{kind: tokenDay})
				}
			default:
				return nil, apperror.NewInvalidPattern(pattern,
					fmt.Sprintf("%c token must be exactly two characters", c)).
					WithDetail("position", i)
			}
		default:
			literal.WriteString(pattern[i : i+run])
		}
		i += run
	}
	flush()

	if p.width == 0 {
		return nil, apperror.NewInvalidPattern(pattern, "pattern has no running-number run (X...)")
	}

	p.matcher = regexp.MustCompile(p.expression(nil))
	return p, nil
}

// MustCompile is like Compile but panics on error. Use for constants and tests.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidatePattern reports whether pattern can be used by a numbering rule.
func ValidatePattern(pattern string) error {
	_, err := Compile(pattern)
	return err
}

// runLength returns the length of the run of identical bytes starting at i.
func runLength(s string, i int) int {
	j := i + 1
	for j < len(s) && s[j] == s[i] {
		j++
	}
	return j - i
}

// String returns the source template.
func (p *Pattern) String() string { return p.source }

// Width is the zero-padding width of the running number.
func (p *Pattern) Width() int { return p.width }

// HasDateTokens reports whether numbering is scoped to a calendar period.
func (p *Pattern) HasDateTokens() bool { return p.hasYear || p.hasMonth || p.hasDay }

// Matcher matches any number rendered from this pattern, whatever its date.
// The single capture group holds the running number.
func (p *Pattern) Matcher() *regexp.Regexp { return p.matcher }

// PeriodMatcher matches only numbers rendered for the period of asOf.
//
// Numbers issued in another year or month do not match, which is what
// restarts the running number at 1 when the period changes. Keep the date
// values literal here.
func (p *Pattern) PeriodMatcher(asOf time.Time) *regexp.Regexp {
	return regexp.MustCompile(p.PeriodExpression(asOf))
}

// PeriodExpression is the source of PeriodMatcher. The syntax is understood by
// both Go regexp and PostgreSQL's ~ operator.
func (p *Pattern) PeriodExpression(asOf time.Time) string {
	return p.expression(&asOf)
}

func (p *Pattern) expression(asOf *time.Time) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, s := range p.segments {
		switch s.kind {
		case tokenLiteral:
			b.WriteString(regexp.QuoteMeta(s.text))
		case tokenRun:
			fmt.Fprintf(&b, `(\d{%d,})`, p.width)
		default:
			if asOf != nil {
				b.WriteString(dateValue(s.kind, *asOf))
			} else {
				fmt.Fprintf(&b, `\d{%d}`, dateWidth(s.kind))
			}
		}
	}
	b.WriteByte('$')
	return b.String()
}

// Render formats running number n for date. A number wider than the run
// keeps all of its digits rather than failing. n must not be negative.
func (p *Pattern) Render(n int64, date time.Time) string {
	var b strings.Builder
	for _, s := range p.segments {
		switch s.kind {
		case tokenLiteral:
			b.WriteString(s.text)
		case tokenRun:
			fmt.Fprintf(&b, "%0*d", p.width, n)
		default:
			b.WriteString(dateValue(s.kind, date))
		}
	}
	return b.String()
}

// RunningNumber extracts the running number from a rendered document number.
func (p *Pattern) RunningNumber(number string) (int64, bool) {
	return extractRunningNumber(p.matcher, number)
}

func extractRunningNumber(re *regexp.Regexp, number string) (int64, bool) {
	m := re.FindStringSubmatch(number)
	if len(m) != 2 {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// PeriodKey identifies the numbering period of asOf for this pattern:
// "2026" for a yearly pattern, "2026-10" for a monthly one and "" when the
// pattern carries no date tokens.
func (p *Pattern) PeriodKey(asOf time.Time) string {
	parts := make([]string, 0, 3)
	if p.hasYear {
		parts = append(parts, asOf.Format("2006"))
	}
	if p.hasMonth {
		parts = append(parts, asOf.Format("01"))
	}
	if p.hasDay {
		parts = append(parts, asOf.Format("02"))
	}
	return strings.Join(parts, "-")
}

func dateWidth(k tokenKind) int {
	if k == tokenYear4 {
		return 4
	}
	return 2
}

func dateValue(k tokenKind, t time.Time) string {
	switch k {
	case tokenYear4:
		return fmt.Sprintf("%04d", t.Year())
	case tokenYear2:
		return fmt.Sprintf("%02d", t.Year()%100)
	case tokenMonth:
		return fmt.Sprintf("%02d", int(t.Month()))
	case tokenDay:
		return fmt.Sprintf("%02d", t.Day())
	}
	return ""
}
