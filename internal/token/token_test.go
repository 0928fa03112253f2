package token

import (
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_AlphabetAndLength(t *testing.T) {
	charsets := []Charset{Alphanumeric, Numeric, FixedNumeric, Alpha}

	for _, cs := range charsets {
		for _, length := range []int{1, 2, 4, 8, 19, 32} {
			t.Run(string(cs)+"/"+strconv.Itoa(length), func(t *testing.T) {
				alphabet, err := Alphabet(cs)
				require.NoError(t, err)

				for range 200 {
					tok, err := Generate(length, cs)
					require.NoError(t, err)
					require.NotEmpty(t, tok)

					for _, r := range tok {
						assert.True(t, strings.ContainsRune(alphabet, r), "%q not in %s alphabet", r, cs)
					}

					if cs == Numeric {
						assert.LessOrEqual(t, len(tok), length)
						assert.False(t, len(tok) > 1 && tok[0] == '0', "numeric token %q has a leading zero", tok)
					} else {
						assert.Len(t, tok, length)
					}
					assert.True(t, Valid(tok, Policy{Field: "token", Length: length, Charset: cs}), "token %q", tok)
				}
			})
		}
	}
}

func TestGenerate_AlphanumericDistribution(t *testing.T) {
	const samples = 20000

	counts := make(map[rune]int)
	for range samples {
		tok, err := Generate(4, Alphanumeric)
		require.NoError(t, err)
		for _, r := range tok {
			counts[r]++
		}
	}

	require.Len(t, counts, 62, "every symbol should appear")

	expected := float64(samples*4) / 62
	for r, n := range counts {
		ratio := float64(n) / expected
		assert.InDelta(t, 1.0, ratio, 0.25, "symbol %q appeared %d times, expected about %.0f", r, n, expected)
	}
}

func TestGenerate_NumericCoversShortValues(t *testing.T) {
	// With length 1 every value 0-9 is a one-digit token.
	seen := make(map[string]bool)
	for range 500 {
		tok, err := Generate(1, Numeric)
		require.NoError(t, err)
		seen[tok] = true
	}
	assert.Len(t, seen, 10)
}

func TestGenerate_FixedNumericIsAlwaysFullLength(t *testing.T) {
	for range 2000 {
		tok, err := Generate(6, FixedNumeric)
		require.NoError(t, err)
		require.Len(t, tok, 6)

		_, err = strconv.Atoi(tok)
		require.NoError(t, err, "token %q should be decimal", tok)
	}
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate(0, Alphanumeric)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = Generate(-3, Alpha)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = Generate(4, Charset("emoji"))
	assert.ErrorIs(t, err, ErrUnknownCharset)
}

func TestGenerate_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for range 64 {
		wg.Go(func() {
			for range 100 {
				if _, err := Generate(8, Alphanumeric); err != nil {
					errs <- err
					return
				}
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent generate: %v", err)
	}
}

func TestParseCharset(t *testing.T) {
	tests := []struct {
		in      string
		want    Charset
		wantErr bool
	}{
		{"", Alphanumeric, false},
		{"alphanumeric", Alphanumeric, false},
		{"NUMERIC", Numeric, false},
		{" fixed_numeric ", FixedNumeric, false},
		{"alpha", Alpha, false},
		{"hex", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCharset(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCharset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValid(t *testing.T) {
	alnum4 := Policy{Field: "token", Length: 4, Charset: Alphanumeric}
	num4 := Policy{Field: "token", Length: 4, Charset: Numeric}
	fixed4 := Policy{Field: "token", Length: 4, Charset: FixedNumeric}
	alpha4 := Policy{Field: "token", Length: 4, Charset: Alpha}

	tests := []struct {
		name  string
		value string
		p     Policy
		want  bool
	}{
		{"alnum ok", "Ab3F", alnum4, true},
		{"alnum short", "Ab3", alnum4, false},
		{"alnum bad symbol", "Ab-F", alnum4, false},
		{"numeric zero", "0", num4, true},
		{"numeric short", "42", num4, true},
		{"numeric leading zero", "042", num4, false},
		{"numeric too long", "12345", num4, false},
		{"fixed ok", "7742", fixed4, true},
		{"fixed short", "742", fixed4, false},
		{"alpha digit", "Ab3F", alpha4, false},
		{"alpha ok", "AbcF", alpha4, true},
		{"empty", "", alnum4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.value, tt.p))
		})
	}
}

func TestNewPolicy_Defaults(t *testing.T) {
	p, err := NewPolicy()
	require.NoError(t, err)

	assert.Equal(t, Policy{Field: "token", Length: 4, Charset: Alphanumeric, MaxRetries: 3}, p)
}

func TestNewPolicy_Options(t *testing.T) {
	p, err := NewPolicy(
		WithField("code"),
		WithLength(6),
		WithCharset(FixedNumeric),
		WithMaxRetries(5),
	)
	require.NoError(t, err)

	assert.Equal(t, "code", p.Field)
	assert.Equal(t, 6, p.Length)
	assert.Equal(t, FixedNumeric, p.Charset)
	assert.Equal(t, 5, p.MaxRetries)
}

func TestNewPolicy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty field", WithField("")},
		{"zero length", WithLength(0)},
		{"unknown charset", WithCharset("hex")},
		{"negative retries", WithMaxRetries(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.opt)
			assert.Error(t, err)
		})
	}

	assert.Panics(t, func() { MustPolicy(WithLength(0)) })
}

func TestPolicy_Space(t *testing.T) {
	assert.Equal(t, int64(62*62*62*62), MustPolicy().Space())
	assert.Equal(t, int64(1_000_000), MustPolicy(WithLength(6), WithCharset(FixedNumeric)).Space())
	assert.Equal(t, int64(52), MustPolicy(WithLength(1), WithCharset(Alpha)).Space())
	assert.Equal(t, int64(1<<63-1), MustPolicy(WithLength(64)).Space())
}

func TestPolicy_GenerateUsesGenerator(t *testing.T) {
	p := MustPolicy(WithLength(6), WithCharset(Numeric))

	var gotLength int
	var gotCharset Charset
	tok, err := p.Generate(func(length int, cs Charset) (string, error) {
		gotLength, gotCharset = length, cs
		return "123", nil
	})
	require.NoError(t, err)

	assert.Equal(t, "123", tok)
	assert.Equal(t, 6, gotLength)
	assert.Equal(t, Numeric, gotCharset)
}
