package guard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/nurole/shorttoken/internal/record"
	"github.com/nurole/shorttoken/internal/store"
	"github.com/nurole/shorttoken/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	ID    string
	Token string
	Email string
}

var docToken = record.Field[doc]{
	Name: "token",
	Get:  func(d *doc) string { return d.Token },
	Set:  func(d *doc, v string) { d.Token = v },
}

// scriptedStore replays one result per call and records the token it saw.
type scriptedStore struct {
	mu      sync.Mutex
	results []error
	seen    []string
	byToken map[string]*doc
}

func (s *scriptedStore) write(_ context.Context, d *doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = append(s.seen, d.Token)
	var err error
	if len(s.results) > 0 {
		err = s.results[0]
		s.results = s.results[1:]
	}
	if err == nil {
		if s.byToken == nil {
			s.byToken = make(map[string]*doc)
		}
		cp := *d
		s.byToken[d.Token] = &cp
	}
	return err
}

func (s *scriptedStore) Insert(ctx context.Context, d *doc) error { return s.write(ctx, d) }
func (s *scriptedStore) Update(ctx context.Context, d *doc) error { return s.write(ctx, d) }

func (s *scriptedStore) FindOne(_ context.Context, field, value string) (*doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if field != "token" {
		return nil, fmt.Errorf("no index on %s", field)
	}
	d, ok := s.byToken[value]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func conflicts(n int, field string) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = fmt.Errorf("insert doc: %w", &store.ConflictError{Entity: "doc", Field: field})
	}
	return errs
}

// sequence returns a generator yielding tok-1, tok-2, ...
func sequence() (token.Generator, *int) {
	var mu sync.Mutex
	calls := 0
	return func(int, token.Charset) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return fmt.Sprintf("tok-%d", calls), nil
	}, &calls
}

func policy(t *testing.T, retries int) token.Policy {
	t.Helper()
	p, err := token.NewPolicy(token.WithMaxRetries(retries))
	require.NoError(t, err)
	return p
}

func TestWrap_GeneratesWhenEmpty(t *testing.T) {
	s := &scriptedStore{}
	gen, calls := sequence()
	write := Wrap("doc", policy(t, 3), docToken, s.Insert, WithGenerator(gen))

	d := &doc{}
	require.NoError(t, write(context.Background(), d))

	assert.Equal(t, "tok-1", d.Token)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, []string{"tok-1"}, s.seen)
}

func TestWrap_KeepsExistingToken(t *testing.T) {
	s := &scriptedStore{}
	gen, calls := sequence()
	write := Wrap("doc", policy(t, 3), docToken, s.Update, WithGenerator(gen))

	d := &doc{Token: "Ab3F"}
	require.NoError(t, write(context.Background(), d))

	assert.Equal(t, "Ab3F", d.Token)
	assert.Zero(t, *calls)
}

func TestWrap_RetriesUntilSuccess(t *testing.T) {
	const retries = 4
	for k := range retries {
		t.Run(fmt.Sprintf("%d conflicts", k), func(t *testing.T) {
			s := &scriptedStore{results: conflicts(k, "token")}
			gen, _ := sequence()
			write := Wrap("doc", policy(t, retries), docToken, s.Insert, WithGenerator(gen))

			d := &doc{}
			require.NoError(t, write(context.Background(), d))

			require.Len(t, s.seen, k+1)
			rejected := s.seen[:k]
			assert.NotContains(t, rejected, d.Token)
			assert.Equal(t, s.seen[k], d.Token)
		})
	}
}

func TestWrap_ExhaustsBudget(t *testing.T) {
	for _, k := range []int{3, 4, 10} {
		t.Run(fmt.Sprintf("%d conflicts", k), func(t *testing.T) {
			s := &scriptedStore{results: conflicts(k, "token")}
			gen, _ := sequence()
			write := Wrap("doc", policy(t, 3), docToken, s.Insert, WithGenerator(gen))

			d := &doc{ID: "doc-1"}
			err := write(context.Background(), d)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCollisionRetriesExceeded)

			var exceeded *CollisionRetriesExceededError
			require.ErrorAs(t, err, &exceeded)
			assert.Equal(t, "doc", exceeded.Type)
			assert.Equal(t, "token", exceeded.Field)
			assert.Equal(t, 3, exceeded.Retries)
			assert.Same(t, d, exceeded.Record)
			assert.Equal(t, "tok-3", exceeded.LastToken)
			assert.True(t, store.IsConflictOn(exceeded.Last, "token"))

			// No store call after the bound is hit.
			assert.Len(t, s.seen, 3)
			assert.False(t, store.IsConflictOn(err, "token"), "exhaustion must not look retryable")
		})
	}
}

func TestWrap_OtherErrorsPassThrough(t *testing.T) {
	validationErr := errors.New("title is required")

	tests := []struct {
		name string
		err  error
	}{
		{"validation", validationErr},
		{"conflict on another field", &store.ConflictError{Entity: "doc", Field: "email"}},
		{"deadline", context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedStore{results: []error{tt.err}}
			gen, calls := sequence()
			write := Wrap("doc", policy(t, 3), docToken, s.Insert, WithGenerator(gen))

			d := &doc{Token: "keep"}
			err := write(context.Background(), d)

			assert.Equal(t, tt.err, err)
			assert.Equal(t, "keep", d.Token)
			assert.Zero(t, *calls)
			assert.Len(t, s.seen, 1)
		})
	}
}

func TestWrap_ZeroRetriesReturnsConflict(t *testing.T) {
	s := &scriptedStore{results: conflicts(1, "token")}
	gen, _ := sequence()
	write := Wrap("doc", policy(t, 0), docToken, s.Insert, WithGenerator(gen))

	err := write(context.Background(), &doc{})
	assert.True(t, store.IsConflictOn(err, "token"))
	assert.NotErrorIs(t, err, ErrCollisionRetriesExceeded)
	assert.Len(t, s.seen, 1)
}

func TestWrap_BudgetIsPerCall(t *testing.T) {
	s := &scriptedStore{results: conflicts(3+2, "token")}
	gen, _ := sequence()
	write := Wrap("doc", policy(t, 3), docToken, s.Insert, WithGenerator(gen))

	d := &doc{}
	err := write(context.Background(), d)
	require.ErrorIs(t, err, ErrCollisionRetriesExceeded)
	require.Len(t, s.seen, 3)

	// Two more conflicts, then success: only possible with a fresh budget of 3.
	require.NoError(t, write(context.Background(), d))
	assert.Len(t, s.seen, 6)
}

func TestWrap_GeneratorError(t *testing.T) {
	s := &scriptedStore{}
	boom := errors.New("entropy")
	write := Wrap("doc", policy(t, 3), docToken, s.Insert,
		WithGenerator(func(int, token.Charset) (string, error) { return "", boom }))

	err := write(context.Background(), &doc{})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, s.seen)
}

func TestWrap_LogsExhaustion(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := &scriptedStore{results: conflicts(2, "token")}
	gen, _ := sequence()
	write := Wrap("doc", policy(t, 2), docToken, s.Insert, WithGenerator(gen), WithLogger(logger))

	require.Error(t, write(context.Background(), &doc{}))
	assert.Contains(t, buf.String(), "Token collision, regenerating")
	assert.Contains(t, buf.String(), "Token collision retries exceeded")
}

func TestInstall(t *testing.T) {
	typ := record.NewType[doc]("doc", nil)
	gen, calls := sequence()
	require.NoError(t, Install(typ, docToken, policy(t, 3), WithGenerator(gen)))

	f, ok := typ.Field("token")
	require.True(t, ok)
	assert.True(t, f.Unique)

	s := &scriptedStore{results: conflicts(1, "token")}
	repo := record.NewRepository(typ, s)

	d := &doc{}
	require.NoError(t, repo.Create(context.Background(), d))
	assert.Equal(t, "tok-2", d.Token)
	assert.Equal(t, 2, *calls)

	// Updating a stored record leaves its token alone.
	require.NoError(t, repo.Update(context.Background(), d))
	assert.Equal(t, "tok-2", d.Token)
	assert.Equal(t, 2, *calls)

	// Records stored before the field existed get one on their next save.
	legacy := &doc{ID: "legacy"}
	require.NoError(t, repo.Update(context.Background(), legacy))
	assert.Equal(t, "tok-3", legacy.Token)
}

func TestInstall_KeepsCallerToken(t *testing.T) {
	typ := record.NewType[doc]("doc", nil)
	gen, calls := sequence()
	require.NoError(t, Install(typ, docToken, policy(t, 3), WithGenerator(gen)))

	s := &scriptedStore{}
	repo := record.NewRepository(typ, s)

	d := &doc{Token: "mine"}
	require.NoError(t, repo.Create(context.Background(), d))
	assert.Equal(t, "mine", d.Token)
	assert.Zero(t, *calls)

	// A chosen token that collides is replaced like a generated one.
	s.results = conflicts(1, "token")
	taken := &doc{Token: "mine"}
	require.NoError(t, repo.Create(context.Background(), taken))
	assert.Equal(t, "tok-1", taken.Token)
	assert.Equal(t, []string{"mine", "mine", "tok-1"}, s.seen)
}

func TestInstall_RejectsMismatchedField(t *testing.T) {
	typ := record.NewType[doc]("doc", nil)
	p, err := token.NewPolicy(token.WithField("code"))
	require.NoError(t, err)

	err = Install(typ, docToken, p)
	assert.ErrorContains(t, err, `does not match policy field "code"`)
}

func TestFindByToken(t *testing.T) {
	typ := record.NewType[doc]("doc", nil)
	p := policy(t, 3)
	require.NoError(t, Install(typ, docToken, p))

	s := &scriptedStore{}
	repo := record.NewRepository(typ, s)

	d := &doc{ID: "doc-1", Token: "Ab3F"}
	require.NoError(t, repo.Create(context.Background(), d))

	found, err := FindByToken[doc](context.Background(), repo, p, "Ab3F")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "doc-1", found.ID)

	missing, err := FindByToken[doc](context.Background(), repo, p, "zzzz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := FindByToken[doc](context.Background(), repo, p, "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}
