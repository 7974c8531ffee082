package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/smartrent-ledger/internal/config"
	"github.com/iliyamo/smartrent-ledger/internal/database"
	"github.com/iliyamo/smartrent-ledger/internal/engine"
	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/observability"
	"github.com/iliyamo/smartrent-ledger/internal/repository"
)

// cliEnv holds what every subcommand needs.  Tests replace the journal and
// the output.
type cliEnv struct {
	out     io.Writer
	errOut  io.Writer
	journal func(ctx context.Context) (engine.EventSource, func(), error)
	policy  func() (engine.Policy, error)
	db      func() (*sqlx.DB, error)
}

func defaultEnv() *cliEnv {
	env := &cliEnv{out: os.Stdout, errOut: os.Stderr}
	env.db = func() (*sqlx.DB, error) {
		cfg := config.LoadDB()
		observability.InitLogger("rentctl", cfg.LogLevel, cfg.LogFormat)
		return database.Open(cfg.DBDriver, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	env.journal = func(context.Context) (engine.EventSource, func(), error) {
		db, err := env.db()
		if err != nil {
			return nil, nil, err
		}
		return repository.NewEventRepo(db), func() { _ = db.Close() }, nil
	}
	env.policy = func() (engine.Policy, error) {
		return config.LoadPolicy(os.Getenv("ENGINE_CONFIG_FILE"))
	}
	return env
}

func commands(env *cliEnv) []subcommands.Command {
	return []subcommands.Command{
		&verifyCmd{env: env},
		&eventsCmd{env: env},
		&ownersCmd{env: env},
		&migrateCmd{env: env},
		&operatorCmd{env: env},
	}
}

func (env *cliEnv) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(env.errOut, err)
	return subcommands.ExitFailure
}

// restore replays the whole journal into a fresh engine.
func (env *cliEnv) restore(ctx context.Context) (*engine.Engine, error) {
	policy, err := env.policy()
	if err != nil {
		return nil, err
	}
	src, closeFn, err := env.journal(ctx)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return engine.Restore(ctx, policy, src)
}

type verifyCmd struct{ env *cliEnv }

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "replay the journal and check every ledger invariant" }
func (*verifyCmd) Usage() string {
	return `rentctl verify

  Rebuilds the engine from the journal and checks share supply, owner sets,
  escrow and treasury balances.  Exits non-zero on the first violation.
`
}
func (*verifyCmd) SetFlags(*flag.FlagSet) {}

func (c *verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := c.env.restore(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	if err := e.CheckInvariants(); err != nil {
		return c.env.fail(fmt.Errorf("invariants violated at seq %d: %w", e.Seq(), err))
	}
	fmt.Fprintf(c.env.out, "ok: %d events, escrowed %s\n", e.Seq(), e.Escrowed())
	return subcommands.ExitSuccess
}

type eventsCmd struct {
	env   *cliEnv
	after uint64
	limit int
	raw   bool
}

func (*eventsCmd) Name() string     { return "events" }
func (*eventsCmd) Synopsis() string { return "print journal entries" }
func (*eventsCmd) Usage() string {
	return `rentctl events [-after <seq>] [-limit <n>] [-json]
`
}

func (c *eventsCmd) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&c.after, "after", 0, "Print events with a sequence number above this one.")
	f.IntVar(&c.limit, "limit", 50, "Maximum number of events; 0 prints all.")
	f.BoolVar(&c.raw, "json", false, "Print one JSON document per line.")
}

func (c *eventsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	src, closeFn, err := c.env.journal(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer closeFn()

	events, err := src.Events(ctx, c.after, c.limit)
	if err != nil {
		return c.env.fail(err)
	}
	if c.raw {
		enc := json.NewEncoder(c.env.out)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return c.env.fail(err)
			}
		}
		return subcommands.ExitSuccess
	}
	w := tabwriter.NewWriter(c.env.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tAT\tKIND\tCALLER")
	for _, ev := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", ev.Seq, ev.At.Format("2006-01-02T15:04:05Z"), ev.Kind, ev.Caller)
	}
	if err := w.Flush(); err != nil {
		return c.env.fail(err)
	}
	return subcommands.ExitSuccess
}

type ownersCmd struct{ env *cliEnv }

func (*ownersCmd) Name() string     { return "owners" }
func (*ownersCmd) Synopsis() string { return "replay the journal and print the holders of an asset" }
func (*ownersCmd) Usage() string {
	return `rentctl owners <asset_id>
`
}
func (*ownersCmd) SetFlags(*flag.FlagSet) {}

func (c *ownersCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.env.errOut, c.Usage())
		return subcommands.ExitUsageError
	}
	assetID, err := strconv.ParseUint(f.Arg(0), 10, 64)
	if err != nil {
		return c.env.fail(fmt.Errorf("invalid asset id %q", f.Arg(0)))
	}
	e, err := c.env.restore(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	holdings, err := e.Holdings(assetID)
	if err != nil {
		return c.env.fail(err)
	}
	top, _ := e.TopShareholder(assetID)

	w := tabwriter.NewWriter(c.env.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HOLDER\tSHARES\tBPS\t")
	for _, h := range holdings {
		mark := ""
		if h.Holder == top.Holder {
			mark = "top"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", h.Holder, h.Balance, h.Bps, mark)
	}
	if err := w.Flush(); err != nil {
		return c.env.fail(err)
	}
	return subcommands.ExitSuccess
}

type migrateCmd struct{ env *cliEnv }

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending schema migrations" }
func (*migrateCmd) Usage() string {
	return `rentctl migrate
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	db, err := c.env.db()
	if err != nil {
		return c.env.fail(err)
	}
	defer db.Close()
	n, err := database.Migrate(db)
	if err != nil {
		return c.env.fail(err)
	}
	fmt.Fprintf(c.env.out, "applied %d migrations\n", n)
	return subcommands.ExitSuccess
}

type operatorCmd struct {
	env      *cliEnv
	email    string
	password string
	address  string
	cost     int
}

func (*operatorCmd) Name() string     { return "operator" }
func (*operatorCmd) Synopsis() string { return "create an OPERATOR account allowed to mint assets" }
func (*operatorCmd) Usage() string {
	return `rentctl operator -email <email> -password <password> -address <0x...>
`
}

func (c *operatorCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Login email.")
	f.StringVar(&c.password, "password", "", "Login password.")
	f.StringVar(&c.address, "address", "", "Wallet address the account acts as.")
	f.IntVar(&c.cost, "cost", 12, "bcrypt cost.")
}

func (c *operatorCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" || len(c.password) < 8 {
		fmt.Fprint(c.env.errOut, c.Usage())
		return subcommands.ExitUsageError
	}
	addr, err := model.ParseAddress(c.address)
	if err != nil {
		return c.env.fail(err)
	}
	db, err := c.env.db()
	if err != nil {
		return c.env.fail(err)
	}
	defer db.Close()
	id, err := repository.NewAccountRepo(db).Create(ctx, c.email, c.password, addr, model.RoleOperator, c.cost)
	if err != nil {
		return c.env.fail(err)
	}
	fmt.Fprintf(c.env.out, "created operator account %d for %s\n", id, addr)
	return subcommands.ExitSuccess
}
