package main

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/healthvoice-triage/migrations"
)

type fakeMigrator struct {
	upErr  error
	steps  []int
	forced []int
	ups    int
}

func (f *fakeMigrator) Up() error {
	f.ups++
	return f.upErr
}

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(version int) error {
	f.forced = append(f.forced, version)
	return nil
}

func TestRunUp(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	msg, err := run(m, nil)
	require.NoError(t, err)
	assert.Equal(t, "migrations complete", msg)
	assert.Equal(t, 1, m.ups)

	_, err = run(&fakeMigrator{upErr: errors.New("dirty")}, []string{"up"})
	require.ErrorContains(t, err, "dirty")
}

func TestRunDownAndForce(t *testing.T) {
	m := &fakeMigrator{}

	_, err := run(m, []string{"down"})
	require.NoError(t, err)
	_, err = run(m, []string{"down", "2"})
	require.NoError(t, err)
	assert.Equal(t, []int{-1, -2}, m.steps)

	msg, err := run(m, []string{"force", "1"})
	require.NoError(t, err)
	assert.Equal(t, "forced version to 1", msg)
	assert.Equal(t, []int{1}, m.forced)

	for _, args := range [][]string{{"down", "zero"}, {"force"}, {"force", "x"}, {"sideways"}} {
		_, err := run(m, args)
		assert.Error(t, err, "args %v", args)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups++
		case strings.HasSuffix(name, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, 2, ups)
	assert.Equal(t, ups, downs)
}
