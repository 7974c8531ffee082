package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/iliyamo/smartrent-ledger/internal/engine"
	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// DefaultPolicy is used when neither the environment nor a policy file
// sets a value: 2.5% platform fee, 10% cancellation fee, income paid to
// the holders at completion.
func DefaultPolicy() engine.Policy {
	return engine.Policy{
		PlatformFeeBps:     250,
		CancellationFeeBps: 1000,
		IncomeBasis:        model.IncomeAtCompletion,
	}
}

type policyFile struct {
	PlatformFeeBps     int64  `toml:"platform_fee_bps"`
	CancellationFeeBps int64  `toml:"cancellation_fee_bps"`
	FeeRecipient       string `toml:"fee_recipient"`
	IncomeBasis        string `toml:"income_basis"`
}

// LoadPolicy builds the engine policy from PLATFORM_FEE_BPS,
// CANCELLATION_FEE_BPS, FEE_RECIPIENT and INCOME_BASIS, then overlays the
// keys defined in path when path is not empty.  The result is validated.
func LoadPolicy(path string) (engine.Policy, error) {
	p := DefaultPolicy()

	if v := os.Getenv("PLATFORM_FEE_BPS"); v != "" {
		bps, err := parseBps("PLATFORM_FEE_BPS", v)
		if err != nil {
			return engine.Policy{}, err
		}
		p.PlatformFeeBps = bps
	}
	if v := os.Getenv("CANCELLATION_FEE_BPS"); v != "" {
		bps, err := parseBps("CANCELLATION_FEE_BPS", v)
		if err != nil {
			return engine.Policy{}, err
		}
		p.CancellationFeeBps = bps
	}
	if v := os.Getenv("FEE_RECIPIENT"); v != "" {
		addr, err := model.ParseAddress(v)
		if err != nil {
			return engine.Policy{}, fmt.Errorf("parse FEE_RECIPIENT: %w", err)
		}
		p.FeeRecipient = addr
	}
	if v := os.Getenv("INCOME_BASIS"); v != "" {
		p.IncomeBasis = model.IncomeBasis(strings.ToLower(strings.TrimSpace(v)))
	}

	if path != "" {
		if err := overlayPolicyFile(path, &p); err != nil {
			return engine.Policy{}, err
		}
	}

	if err := p.Validate(); err != nil {
		return engine.Policy{}, fmt.Errorf("engine policy: %w", err)
	}
	return p, nil
}

func overlayPolicyFile(path string, p *engine.Policy) error {
	var raw policyFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load policy file: %w", err)
	}

	if meta.IsDefined("platform_fee_bps") {
		bps, err := bpsFromInt("platform_fee_bps", raw.PlatformFeeBps)
		if err != nil {
			return err
		}
		p.PlatformFeeBps = bps
	}

	if meta.IsDefined("cancellation_fee_bps") {
		bps, err := bpsFromInt("cancellation_fee_bps", raw.CancellationFeeBps)
		if err != nil {
			return err
		}
		p.CancellationFeeBps = bps
	}

	if meta.IsDefined("fee_recipient") {
		addr, err := model.ParseAddress(strings.TrimSpace(raw.FeeRecipient))
		if err != nil {
			return fmt.Errorf("parse fee_recipient: %w", err)
		}
		p.FeeRecipient = addr
	}

	if meta.IsDefined("income_basis") {
		p.IncomeBasis = model.IncomeBasis(strings.ToLower(strings.TrimSpace(raw.IncomeBasis)))
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown policy key %q", undecoded[0].String())
	}
	return nil
}

func parseBps(key, v string) (uint32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return bpsFromInt(key, n)
}

func bpsFromInt(key string, n int64) (uint32, error) {
	if n < 0 || n > int64(model.BpsDenominator) {
		return 0, fmt.Errorf("%s out of range: %d", key, n)
	}
	return uint32(n), nil
}
