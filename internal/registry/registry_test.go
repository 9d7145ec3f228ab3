package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type factory func() int

func TestRegisterGetList(t *testing.T) {
	r := New[factory]("test")
	require.NoError(t, r.Register("projection", func() int { return 1 }))
	require.NoError(t, r.Register("onnx", func() int { return 2 }))

	f, ok := r.Get("onnx")
	require.True(t, ok)
	require.Equal(t, 2, f())
	require.True(t, r.Has("projection"))
	require.Equal(t, 2, r.Count())

	if diff := cmp.Diff([]string{"onnx", "projection"}, r.List()); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	require.True(t, r.Unregister("onnx"))
	require.False(t, r.Unregister("onnx"))
	require.False(t, r.Has("onnx"))
}

func TestRegisterEmptyName(t *testing.T) {
	r := New[factory]("test")
	err := r.Register("", func() int { return 0 })
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestLookupSuggestion(t *testing.T) {
	r := New[factory]("vision")
	require.NoError(t, r.Register("projection", func() int { return 1 }))
	require.NoError(t, r.Register("onnx", func() int { return 2 }))

	cases := []struct {
		name       string
		suggestion string
	}{
		{"projektion", "projection"},
		{"onx", "onnx"},
		{"completely-different", ""},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Lookup("create", tt.name)
			require.ErrorIs(t, err, ErrNotRegistered)

			var rerr *Error
			require.True(t, errors.As(err, &rerr))
			require.Equal(t, tt.suggestion, rerr.Suggestion)
			require.Equal(t, "vision", rerr.Kind)
			if tt.suggestion != "" {
				require.Contains(t, err.Error(), "did you mean")
			}
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New[factory]("test")
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := string(rune('a' + i))
			_ = r.Register(name, func() int { return i })
			_, _ = r.Get(name)
			_ = r.List()
		}()
	}
	wg.Wait()
	require.Equal(t, 16, r.Count())
}
