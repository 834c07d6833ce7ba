package gormlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestShortCaller(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: "", want: ""},
		{in: "/home/ci/repo/internal/platform/db/x.go:38", want: "internal/platform/db/x.go:38"},
		{in: "/home/ci/repo/pkg/config/config.go:12", want: "pkg/config/config.go:12"},
		{in: "/a/b/c/d.go:1", want: "b/c/d.go:1"},
		{in: "/d.go:1", want: "d.go:1"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, shortCaller(tt.in), tt.in)
	}
}

func TestTrace_LevelsByOutcome(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core).Sugar(), gormlogger.Warn)
	sqlFn := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sqlFn, gorm.ErrRecordNotFound)
	require.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), sqlFn, errors.New("boom"))
	require.Equal(t, 1, logs.FilterMessage("gorm_trace").Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)
	require.Equal(t, 1, logs.FilterMessage("gorm_slow").Len())

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), sqlFn, errors.New("ignored"))
	require.Equal(t, 2, logs.Len())
}
