package profile

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/target"
)

const (
	symTaskQueues  = "$_tasks_in_priority"
	symBgIntQueues = "$_bg_ints_in_priority"
	symTransforms  = "$_transform_list"
	symStoredFiles = "L_stored_files"
	symFileCount   = "L_file_mgr_file_count"
	symFileOwners  = "L_stored_file_owners"

	typeQueue     = "task_queue"
	typeTask      = "TASK"
	typeBgInt     = "BGINT"
	typeTransform = "TRANSFORM"
	typeCbuffer   = "tCbuffer"
	typeFile      = "DATA_FILE"

	// defaultFileCount is the stored-file table size of builds that do not
	// export it.
	defaultFileCount = 2
	// maxListEntries bounds every linked list and table discovery reads.
	maxListEntries = 4096

	noSourceInfo = "No source information."
)

var (
	// ErrListCycle indicates a scheduler or stream list that loops.
	ErrListCycle = errors.New("profile: repeating list entry")
	// ErrListTooLong indicates a list longer than maxListEntries.
	ErrListTooLong = errors.New("profile: list exceeds entry limit")
)

// walkList visits a next-linked list of typeName entries starting at head.
func walkList(ctx context.Context, t target.Target, head target.Address, typeName string, fn func(target.Struct) error) error {
	seen := mapset.NewThreadUnsafeSet[target.Address]()
	for addr := head; addr != 0; {
		if seen.Contains(addr) {
			return fmt.Errorf("%w: %s at 0x%08X", ErrListCycle, typeName, addr)
		}
		if seen.Cardinality() >= maxListEntries {
			return fmt.Errorf("%w: %s at 0x%08X", ErrListTooLong, typeName, addr)
		}
		seen.Add(addr)
		s, err := target.Cast(t, addr, typeName)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		if addr, err = s.Uint(ctx, "next"); err != nil {
			return err
		}
	}
	return nil
}

// requireTypes fails with UnsupportedLayoutError on the first missing type.
func requireTypes(t target.Target, layout string, names ...string) error {
	for _, name := range names {
		if _, err := t.Type(name); err != nil {
			if heap.IsUnavailable(err) {
				return &heap.UnsupportedLayoutError{Layout: layout, Missing: name}
			}
			return err
		}
	}
	return nil
}

// DiscoverOwners lists the scheduler's tasks and background interrupts as
// owners, labelled with the module of their handler. Ids sharing a low
// octet are merged and the NoTask owner is appended.
func DiscoverOwners(ctx context.Context, t target.Target) ([]Owner, error) {
	var raw []Owner
	for _, q := range []struct{ sym, typ string }{
		{symTaskQueues, typeTask},
		{symBgIntQueues, typeBgInt},
	} {
		owners, err := queueOwners(ctx, t, q.sym, q.typ)
		if err != nil {
			return nil, err
		}
		raw = append(raw, owners...)
	}
	return MergeOwners(raw), nil
}

func queueOwners(ctx context.Context, t target.Target, sym, entry string) ([]Owner, error) {
	v, err := t.Variable(sym)
	if err != nil {
		if heap.IsUnavailable(err) {
			logger.Debug("scheduler queue not present", "symbol", sym)
			return nil, nil
		}
		return nil, err
	}
	if err := requireTypes(t, "scheduler", typeQueue, entry); err != nil {
		return nil, err
	}
	qt, err := t.Type(typeQueue)
	if err != nil {
		return nil, err
	}
	queues, err := target.Cast(t, v.Address, typeQueue)
	if err != nil {
		return nil, err
	}

	var out []Owner
	for level := range v.Size / max(qt.Size, 1) {
		first, err := queues.Index(level).Uint(ctx, "first")
		if err != nil {
			return nil, err
		}
		err = walkList(ctx, t, first, entry, func(s target.Struct) error {
			id, err := s.Uint(ctx, "id")
			if err != nil {
				return err
			}
			handler, err := s.Uint(ctx, "handler")
			if err != nil {
				return err
			}
			out = append(out, Owner{ID: int(id & ownerMask), Label: handlerLabel(t, handler)})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func handlerLabel(t target.Target, handler target.Address) string {
	if handler == 0 {
		return ""
	}
	site, err := t.CodeSite(handler)
	if err != nil || site.Module == "" {
		return noSourceInfo
	}
	return site.Module
}

// DiscoverReferences reads the stream transforms, pool allocations and
// stored files of the target. Subsystems whose symbols are absent
// contribute nothing.
func DiscoverReferences(ctx context.Context, t target.Target, opts ...heap.Option) (*ReferenceSet, error) {
	refs := NewReferenceSet()
	if err := discoverTransforms(ctx, t, refs); err != nil {
		return nil, fmt.Errorf("transforms: %w", err)
	}
	if err := discoverPools(ctx, t, refs, opts); err != nil {
		return nil, fmt.Errorf("pools: %w", err)
	}
	if err := discoverFiles(ctx, t, refs); err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	logger.Debug("references discovered",
		"transforms", len(refs.transforms), "pools", len(refs.pools), "files", len(refs.files))
	return refs, nil
}

// bufferOf follows the tCbuffer pointer at path of s. A null pointer gives
// a zero buffer and base.
func bufferOf(ctx context.Context, s target.Struct, path string) (buffer, base target.Address, err error) {
	cb, err := s.Deref(ctx, path, typeCbuffer)
	if err != nil || cb.Addr == 0 {
		return 0, 0, err
	}
	base, err = cb.Uint(ctx, "base_addr")
	if err != nil {
		return 0, 0, err
	}
	return cb.Addr, base, nil
}

func discoverTransforms(ctx context.Context, t target.Target, refs *ReferenceSet) error {
	head, err := target.VariableValue(ctx, t, symTransforms)
	if err != nil {
		if heap.IsUnavailable(err) {
			return nil
		}
		return err
	}
	if head == 0 {
		return nil
	}
	if err := requireTypes(t, "stream", typeTransform, typeCbuffer); err != nil {
		return err
	}
	return walkList(ctx, t, head, typeTransform, func(s target.Struct) error {
		id, err := s.Uint(ctx, "id")
		if err != nil {
			return err
		}
		buffer, data, err := bufferOf(ctx, s, "buffer")
		if err != nil {
			return err
		}
		refs.AddTransform(TransformRef{
			ID:     int(id),
			Title:  fmt.Sprintf("transform 0x%04X", id),
			Struct: s.Addr,
			Buffer: buffer,
			Data:   data,
		})
		return nil
	})
}

func discoverPools(ctx context.Context, t target.Target, refs *ReferenceSet, opts []heap.Option) error {
	regions, err := heap.Regions(ctx, heap.NewPoolLayout(t, opts...), 0)
	if err != nil {
		return err
	}
	for _, r := range regions {
		if r.Start != 0 {
			refs.AddPool(PoolRef{Pointer: r.Start})
		}
	}
	return nil
}

func discoverFiles(ctx context.Context, t target.Target, refs *ReferenceSet) error {
	list, err := target.VariableValue(ctx, t, symStoredFiles)
	if err != nil {
		if heap.IsUnavailable(err) {
			return nil
		}
		return err
	}
	if list == 0 {
		return nil
	}
	count := defaultFileCount
	if n, err := target.VariableValue(ctx, t, symFileCount); err == nil {
		count = int(n)
	} else if !heap.IsUnavailable(err) {
		return err
	}
	if count > maxListEntries {
		logger.Warn("stored file count out of range", "count", count)
		count = maxListEntries
	}
	if err := requireTypes(t, "file manager", typeFile, typeCbuffer); err != nil {
		return err
	}
	owners, err := fileOwners(ctx, t, count)
	if err != nil {
		return err
	}

	apw := t.Arch().AddrPerWord
	for idx := range count {
		ptr, err := target.ReadWord(ctx, t, target.SpaceDM, list+target.Address(idx*apw))
		if err != nil {
			return err
		}
		if ptr == 0 {
			continue
		}
		f, err := target.Cast(t, ptr, typeFile)
		if err != nil {
			return err
		}
		cb, data, err := bufferOf(ctx, f, "u.file_data")
		if err != nil {
			return err
		}
		refs.AddFile(FileRef{Index: idx, Struct: ptr, CBuffer: cb, Data: data, Owner: owners[idx]})
	}
	return nil
}

// fileOwners reads the 16-bit owner table of stored files. Entries are -1
// when the build keeps no table.
func fileOwners(ctx context.Context, t target.Target, count int) ([]int, error) {
	owners := make([]int, count)
	for i := range owners {
		owners[i] = -1
	}
	ptr, err := target.VariableValue(ctx, t, symFileOwners)
	if err != nil {
		if heap.IsUnavailable(err) {
			return owners, nil
		}
		return nil, err
	}
	if ptr == 0 || count == 0 {
		return owners, nil
	}

	arch := t.Arch()
	if arch.AddrPerWord == 1 {
		words, err := t.ReadWords(ctx, target.SpaceDM, ptr, count)
		if err != nil {
			return nil, err
		}
		for i, w := range words {
			owners[i] = int(w & 0xFFFF)
		}
		return owners, nil
	}
	raw, err := t.ReadBytes(ctx, target.SpaceDM, ptr, 2*count)
	if err != nil {
		return nil, err
	}
	for i := range owners {
		owners[i] = int(arch.ByteOrder.Uint16(raw[2*i:]))
	}
	return owners, nil
}
