package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smartrent-ledger/internal/engine"
	"github.com/iliyamo/smartrent-ledger/internal/model"
)

var (
	minter = model.MustAddress("0x0000000000000000000000000000000000000001")
	alice  = model.MustAddress("0x00000000000000000000000000000000000000a1")
	bob    = model.MustAddress("0x00000000000000000000000000000000000000b2")
	feeTo  = model.MustAddress("0x00000000000000000000000000000000000000fe")
)

func testPolicy() engine.Policy {
	return engine.Policy{
		PlatformFeeBps:     250,
		CancellationFeeBps: 1000,
		FeeRecipient:       feeTo,
		IncomeBasis:        model.IncomeAtCompletion,
	}
}

// seededEnv records a mint and a transfer into a memory journal and returns
// an environment reading from it.
func seededEnv(t *testing.T) (*cliEnv, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	journal := engine.NewMemoryJournal()
	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	e, err := engine.New(testPolicy(), engine.WithJournal(journal), engine.WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = e.Mint(ctx, minter, engine.MintInput{AssetID: 7, TotalShares: 1000, Holder: alice, MetadataPointer: "ipfs://villa"})
	require.NoError(t, err)
	_, err = e.Transfer(ctx, alice, engine.TransferInput{AssetID: 7, To: bob, Amount: 400})
	require.NoError(t, err)

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	env := &cliEnv{
		out:    out,
		errOut: errOut,
		journal: func(context.Context) (engine.EventSource, func(), error) {
			return journal, func() {}, nil
		},
		policy: func() (engine.Policy, error) { return testPolicy(), nil },
		db:     func() (*sqlx.DB, error) { return nil, errors.New("no database in tests") },
	}
	return env, out, errOut
}

func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cmd.Execute(context.Background(), fs)
}

func TestVerifyReplaysJournal(t *testing.T) {
	env, out, _ := seededEnv(t)
	status := run(t, &verifyCmd{env: env})
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "ok: 2 events")
}

func TestVerifyReportsJournalError(t *testing.T) {
	env, _, errOut := seededEnv(t)
	env.journal = func(context.Context) (engine.EventSource, func(), error) {
		return nil, nil, errors.New("dial tcp: refused")
	}
	status := run(t, &verifyCmd{env: env})
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, errOut.String(), "refused")
}

func TestEventsTableAndJSON(t *testing.T) {
	env, out, _ := seededEnv(t)
	status := run(t, &eventsCmd{env: env})
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "asset.minted")
	assert.Contains(t, out.String(), "shares.transferred")

	out.Reset()
	status = run(t, &eventsCmd{env: env}, "-after", "1", "-json")
	require.Equal(t, subcommands.ExitSuccess, status)
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	assert.Contains(t, string(lines[0]), `"kind":"shares.transferred"`)
}

func TestOwnersPrintsHolders(t *testing.T) {
	env, out, _ := seededEnv(t)
	status := run(t, &ownersCmd{env: env}, "7")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), alice.String())
	assert.Contains(t, out.String(), bob.String())
	assert.Contains(t, out.String(), "6000")
	assert.Contains(t, out.String(), "top")
}

func TestOwnersArguments(t *testing.T) {
	env, _, errOut := seededEnv(t)
	assert.Equal(t, subcommands.ExitUsageError, run(t, &ownersCmd{env: env}))
	assert.Equal(t, subcommands.ExitFailure, run(t, &ownersCmd{env: env}, "abc"))
	assert.Equal(t, subcommands.ExitFailure, run(t, &ownersCmd{env: env}, "99"))
	assert.NotEmpty(t, errOut.String())
}

func TestOperatorValidatesBeforeConnecting(t *testing.T) {
	env, _, errOut := seededEnv(t)
	assert.Equal(t, subcommands.ExitUsageError, run(t, &operatorCmd{env: env}, "-email", "ops@example.com", "-password", "short"))
	assert.Equal(t, subcommands.ExitFailure,
		run(t, &operatorCmd{env: env}, "-email", "ops@example.com", "-password", "longenough", "-address", "nope"))
	assert.Equal(t, subcommands.ExitFailure,
		run(t, &operatorCmd{env: env}, "-email", "ops@example.com", "-password", "longenough", "-address", alice.String()))
	assert.Contains(t, errOut.String(), "no database in tests")
}

func TestMigrateReportsConnectionError(t *testing.T) {
	env, _, errOut := seededEnv(t)
	assert.Equal(t, subcommands.ExitFailure, run(t, &migrateCmd{env: env}))
	assert.Contains(t, errOut.String(), "no database in tests")
}

func TestCommandsAreRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range commands(defaultEnv()) {
		names[c.Name()] = true
	}
	for _, n := range []string{"verify", "events", "owners", "migrate", "operator"} {
		assert.True(t, names[n], n)
	}
}
