package testutil

import "github.com/joshuapare/heapkit/target"

// WithScheduler registers the task and background-interrupt queues.
// Entry layout: id at +0, next at +4, handler at +8 (and ppriv at +12 for
// background interrupts).
func (b *Builder) WithScheduler() *Builder {
	b.Type("task_queue", queueSize, map[string]target.FieldLayout{
		"first": word(0),
		"last":  word(4),
	})
	b.Type("TASK", 12, map[string]target.FieldLayout{
		"id":      word(0),
		"next":    word(4),
		"handler": word(8),
	})
	b.Type("BGINT", 16, map[string]target.FieldLayout{
		"id":      word(0),
		"next":    word(4),
		"handler": word(8),
		"ppriv":   word(12),
	})
	b.Variable("$_tasks_in_priority", TaskQueuesAddr, "task_queue", queueLevels*queueSize)
	b.Variable("$_bg_ints_in_priority", BgIntQueuesAddr, "task_queue", queueLevels*queueSize)
	return b
}

func (b *Builder) enqueue(queues target.Address, tails map[int]target.Address, level int, addr target.Address) {
	b.tb.Helper()
	q := queues + target.Address(level*queueSize)
	if tail, ok := tails[level]; ok {
		b.DM(tail+4, addr)
	} else {
		b.DM(q, addr)
	}
	b.DM(q+4, addr)
	tails[level] = addr
}

// Task appends a task to the queue of priority level.
func (b *Builder) Task(level int, addr target.Address, id uint32, handler target.Address) *Builder {
	b.tb.Helper()
	b.Words(target.SpaceDM, addr, id, 0, handler)
	b.enqueue(TaskQueuesAddr, b.taskTail, level, addr)
	return b
}

// BgInt appends a background interrupt to the queue of priority level.
func (b *Builder) BgInt(level int, addr target.Address, id uint32, handler target.Address) *Builder {
	b.tb.Helper()
	b.Words(target.SpaceDM, addr, id, 0, handler, 0)
	b.enqueue(BgIntQueuesAddr, b.bgintTail, level, addr)
	return b
}

// WithStreams registers the transform and buffer types and an empty
// transform list.
// TRANSFORM layout: id at +0, buffer at +4, next at +8.
// tCbuffer layout: base_addr at +12.
func (b *Builder) WithStreams() *Builder {
	b.Type("TRANSFORM", 12, map[string]target.FieldLayout{
		"id":     word(0),
		"buffer": word(4),
		"next":   word(8),
	})
	b.Type("tCbuffer", 16, map[string]target.FieldLayout{
		"read_ptr":  word(0),
		"write_ptr": word(4),
		"size":      word(8),
		"base_addr": word(12),
	})
	b.Variable("$_transform_list", TransformListAddr, "", 4)
	return b
}

// Transform appends a transform at addr whose tCbuffer at buffer points at
// data. A zero buffer leaves the transform without one.
func (b *Builder) Transform(addr target.Address, id uint32, buffer, data target.Address) *Builder {
	b.tb.Helper()
	b.Words(target.SpaceDM, addr, id, buffer, 0)
	if buffer != 0 {
		b.DM(buffer+12, data)
	}
	if b.lastXform == 0 {
		b.DM(TransformListAddr, addr)
	} else {
		b.DM(b.lastXform+8, addr)
	}
	b.lastXform = addr
	return b
}

// StoredFile is one entry of the file manager's table.
type StoredFile struct {
	Struct  target.Address // DATA_FILE, zero for an empty slot
	CBuffer target.Address
	Data    target.Address
	Owner   uint16
}

// WithFiles registers the file manager with a pointer table at table and,
// when owners is non-zero, an owner table there.
// DATA_FILE layout: type at +0, u.file_data at +4.
func (b *Builder) WithFiles(table, owners target.Address, files ...StoredFile) *Builder {
	b.tb.Helper()
	b.Type("DATA_FILE", 8, map[string]target.FieldLayout{
		"type":        word(0),
		"u.file_data": word(4),
	})
	b.Variable("L_stored_files", StoredFilesAddr, "", 4)
	b.Variable("L_file_mgr_file_count", FileCountAddr, "", 4)
	b.DM(StoredFilesAddr, table).DM(FileCountAddr, uint32(len(files)))
	if owners != 0 {
		b.Variable("L_stored_file_owners", FileOwnersAddr, "", 4)
		b.DM(FileOwnersAddr, owners)
	}
	for i, f := range files {
		b.DM(table+target.Address(i*4), f.Struct)
		if owners != 0 {
			b.Half(owners+target.Address(i*2), f.Owner)
		}
		if f.Struct == 0 {
			continue
		}
		b.DM(f.Struct+4, f.CBuffer)
		if f.CBuffer != 0 {
			b.DM(f.CBuffer+12, f.Data)
		}
	}
	return b
}
