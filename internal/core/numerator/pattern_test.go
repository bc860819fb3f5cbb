package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseq/internal/core/apperror"
)

var oct15 = time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

func TestCompile_Render(t *testing.T) {
	tests := []struct {
		pattern string
		n       int64
		want    string
	}{
		{"QT-YYYY-XXXX", 1, "QT-2026-0001"},
		{"INV-YY/MM-XXX", 42, "INV-26/10-042"},
		{"TAX-YYYYMM-XXXX", 7, "TAX-202610-0007"},
		{"RC-YYYYMMDD-XX", 3, "RC-20261015-03"},
		{"XXXXXX", 123, "000123"},
		{"MISC-XXX", 5, "MISC-005"},
		{"A.B(C)-XX", 9, "A.B(C)-09"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Render(tt.n, oct15))
		})
	}
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"empty", ""},
		{"no run", "INV-YYYY"},
		{"two runs", "XX-YYYY-XXXX"},
		{"three Y", "INV-YYY-XXXX"},
		{"five Y", "INV-YYYYY-XXXX"},
		{"three M", "INV-MMM-XXXX"},
		{"three D", "INV-DDD-XXXX"},
		{"space", "INV XXXX"},
		{"tab", "INV\tXXXX"},
		{"too wide", "INV-XXXXXXXXXXXXXXXXXXX"},
		{"invalid utf-8", "\xffINV-XXXX"},
		{"truncated rune", "INV-\xe0\xb8-XXXX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.pattern)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPattern))
			assert.Error(t, ValidatePattern(tt.pattern))
		})
	}
}

func TestCompile_AcceptsUnicodeLiterals(t *testing.T) {
	p, err := Compile("ใบเสร็จ-YYYY-XXXX")
	require.NoError(t, err)

	s := p.Render(3, oct15)
	assert.Equal(t, "ใบเสร็จ-2026-0003", s)
	n, ok := p.RunningNumber(s)
	require.True(t, ok)
	assert.Equal(t, int64(3), n)
}

func TestPattern_RoundTrip(t *testing.T) {
	patterns := []string{"QT-YYYY-XXXX", "INV-YY/MM-XXX", "XXXX2026", "RC-YYYYMMDD-X", "A.B(C)-XX"}
	dates := []time.Time{
		oct15,
		time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, time.December, 31, 23, 59, 0, 0, time.UTC),
	}

	for _, src := range patterns {
		p := MustCompile(src)
		limit := int64(1)
		for i := 0; i < p.Width(); i++ {
			limit *= 10
		}
		samples := []int64{0, 1, 2, limit / 2, limit - 1}

		for _, d := range dates {
			for _, n := range samples {
				s := p.Render(n, d)
				got, ok := p.RunningNumber(s)
				require.True(t, ok, "%s did not match %s", s, p.Matcher())
				assert.Equal(t, n, got, s)
				assert.Regexp(t, p.PeriodMatcher(d), s)
			}
		}
	}
}

func TestPattern_Overflow(t *testing.T) {
	p := MustCompile("QT-YYYY-XX")

	s := p.Render(100, oct15)
	assert.Equal(t, "QT-2026-100", s)

	n, ok := p.RunningNumber(s)
	require.True(t, ok)
	assert.Equal(t, int64(100), n)
}

func TestPattern_PeriodMatcherExcludesOtherPeriods(t *testing.T) {
	p := MustCompile("TAX-YYYYMM-XXXX")
	nov := oct15.AddDate(0, 1, 0)

	october := p.Render(12, oct15)
	assert.Regexp(t, p.PeriodMatcher(oct15), october)
	assert.NotRegexp(t, p.PeriodMatcher(nov), october)

	// the generic matcher still recognizes every period
	_, ok := p.RunningNumber(october)
	assert.True(t, ok)
}

func TestPattern_RunningNumberRejectsForeignNumbers(t *testing.T) {
	p := MustCompile("QT-YYYY-XXXX")

	for _, s := range []string{"INV-2026-0001", "QT-26-0001", "QT-2026-001", "QT-2026-0001x", ""} {
		_, ok := p.RunningNumber(s)
		assert.False(t, ok, s)
	}
}

func TestPattern_PeriodKey(t *testing.T) {
	assert.Equal(t, "2026", MustCompile("QT-YYYY-XXXX").PeriodKey(oct15))
	assert.Equal(t, "2026", MustCompile("QT-YY-XXXX").PeriodKey(oct15))
	assert.Equal(t, "2026-10", MustCompile("TAX-YYYYMM-XXXX").PeriodKey(oct15))
	assert.Equal(t, "2026-10-15", MustCompile("RC-YYMMDD-XX").PeriodKey(oct15))
	assert.Equal(t, "", MustCompile("PO-XXXXX").PeriodKey(oct15))
	assert.False(t, MustCompile("PO-XXXXX").HasDateTokens())
}
