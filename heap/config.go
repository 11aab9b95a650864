package heap

import (
	"context"
	"fmt"
	"strings"

	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/target"
)

// Mode selects how configuration is cached between passes.
type Mode int

const (
	// ModeSnapshot resolves configuration once per layout. Memory never
	// changes, so reads may also be served from a page cache.
	ModeSnapshot Mode = iota
	// ModeLive re-resolves configuration at the start of every pass.
	ModeLive
)

func (m Mode) String() string {
	switch m {
	case ModeSnapshot:
		return "snapshot"
	case ModeLive:
		return "live"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// BootState reports whether a processor has been started.
type BootState func(ctx context.Context, processor int) (bool, error)

type options struct {
	mode  Mode
	names Names
	boot  BootState
}

// Option configures a layout.
type Option func(*options)

// WithMode sets the configuration caching mode. The default is ModeSnapshot.
func WithMode(m Mode) Option { return func(o *options) { o.mode = m } }

// WithNames overrides firmware symbol names. Empty fields keep their defaults.
func WithNames(n Names) Option { return func(o *options) { o.names = n } }

// WithBootState supplies processor boot state to the instruction-memory
// layout, replacing the present-cores variable.
func WithBootState(fn BootState) Option { return func(o *options) { o.boot = fn } }

func buildOptions(opts []Option) options {
	o := options{mode: ModeSnapshot}
	for _, fn := range opts {
		fn(&o)
	}
	o.names = o.names.withDefaults()
	return o
}

// ResolvedConfig is the configuration a layout derives from symbols. It is
// fixed for the duration of a pass.
type ResolvedConfig struct {
	Profiling     bool   // headers carry owner tags
	DebugNodes    bool   // nodes carry file and line
	NodeType      string // node type name
	MagicOffset   int    // words from header to u.magic
	PayloadOffset int    // units from header to payload

	// regionIDs maps catalog slots to enum values; -1 when absent.
	regionIDs []int64

	// Data memory.
	CommonShared bool

	// Instruction memory.
	HasCodeGap bool
	CodeStart  target.Address
	CodeEnd    target.Address
	PatchSize  uint32

	// Pools.
	PoolCount int
}

// RegionID returns the enum value of catalog slot n.
func (c *ResolvedConfig) RegionID(n int) (int64, bool) {
	if n < 0 || n >= len(c.regionIDs) || c.regionIDs[n] < 0 {
		return 0, false
	}
	return c.regionIDs[n], true
}

// layoutBase carries the configuration cache shared by every layout.
type layoutBase struct {
	t        target.Target
	opts     options
	cfg      *ResolvedConfig
	resolves int
}

func newLayoutBase(t target.Target, opts []Option) layoutBase {
	return layoutBase{t: t, opts: buildOptions(opts)}
}

// Target returns the target the layout reads.
func (b *layoutBase) Target() target.Target { return b.t }

// Mode returns the caching mode.
func (b *layoutBase) Mode() Mode { return b.opts.mode }

// BeginPass marks the start of a pass. Live layouts drop their resolved
// configuration.
func (b *layoutBase) BeginPass() {
	if b.opts.mode == ModeLive {
		b.cfg = nil
	}
}

// Resolves returns how many times configuration has been resolved.
func (b *layoutBase) Resolves() int { return b.resolves }

func (b *layoutBase) config(ctx context.Context, resolve func(context.Context) (*ResolvedConfig, error)) (*ResolvedConfig, error) {
	if b.cfg != nil {
		return b.cfg, nil
	}
	cfg, err := resolve(ctx)
	if err != nil {
		return nil, err
	}
	b.cfg = cfg
	b.resolves++
	return cfg, nil
}

// nodeGeometry derives magic and payload offsets from a node type layout.
func nodeGeometry(t target.Target, layout, node string) (cfg ResolvedConfig, err error) {
	typ, err := t.Type(node)
	if err != nil {
		if IsUnavailable(err) {
			return cfg, &UnsupportedLayoutError{Layout: layout, Missing: node}
		}
		return cfg, err
	}
	off, _, _, err := typ.Resolve(t, "u.magic")
	if err != nil {
		return cfg, &UnsupportedLayoutError{Layout: layout, Missing: node + ".u.magic"}
	}
	_, _, _, lineErr := typ.Resolve(t, "line")
	cfg.NodeType = node
	cfg.MagicOffset = off / t.Arch().AddrPerWord
	cfg.PayloadOffset = typ.Size
	cfg.DebugNodes = lineErr == nil
	return cfg, nil
}

// enumSlots maps each named region to its enum value, stopping at cutoff.
func enumSlots(members map[string]int64, names []regionName, cutoff int64) []int64 {
	ids := make([]int64, len(names))
	for i, n := range names {
		ids[i] = -1
		if v, ok := members[n.enum]; ok && v >= 0 && v < cutoff {
			ids[i] = v
		}
	}
	return ids
}

// DetectProfiling reports whether allocation headers carry owner tags.
// Builds that export the owner enum are tagged. Older builds are tagged only
// when a patch installed the feature.
func DetectProfiling(ctx context.Context, t target.Target, names Names) (bool, error) {
	names = names.withDefaults()
	if _, err := t.Enum(names.ProfilingEnum); err == nil {
		return true, nil
	} else if !IsUnavailable(err) {
		return false, err
	}

	arch := t.Arch()
	if arch.KalArch != 4 || !strings.EqualFold(arch.ChipArch, "hydra") {
		return false, nil
	}
	switch {
	case arch.ChipID <= 0x4A:
		return false, nil
	case arch.ChipID > 0x4C:
		return true, nil
	case arch.FirmwareID == 11639:
		return true, nil
	case arch.FirmwareID == 7120 && arch.PatchLevel >= 10340:
		return true, nil
	}

	start, err := t.Variable(names.PatchStart)
	if err != nil {
		return false, nil
	}
	end, err := t.Variable(names.PatchEnd)
	if err != nil || end.Address <= start.Address {
		return false, nil
	}
	count := int(end.Address-start.Address) / arch.AddrPerWord
	words, err := t.ReadWords(ctx, target.SpaceDM, start.Address, count)
	if err != nil {
		return false, err
	}
	for _, w := range words {
		if w == patchSignature {
			logger.Debug("owner profiling patch found", "chip_id", arch.ChipID)
			return true, nil
		}
	}
	return false, nil
}
