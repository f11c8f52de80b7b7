package sched

import (
	"github.com/Alec-Sobeck/Operating-System/internal/defs"
	"github.com/Alec-Sobeck/Operating-System/internal/ipc"
)

// PipeOpen implements §4.8's open. Returns -1 if the system-wide pipe limit
// is exhausted.
func (k *Kernel) PipeOpen(self *Task) defs.PipeId_t {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.Limits.MaxPipes.Take() {
		return -1
	}
	id := k.allocPipeID()
	k.pipes.Set(id, ipc.NewPipe(id, ipc.DefaultPipeSize))
	self.PipeIDs = append(self.PipeIDs, id)
	return id
}

// PipeWrite implements §4.8's write: -1 if the caller doesn't own id, 0 if
// the pipe doesn't have room for every byte of buf (no partial writes),
// otherwise the number of bytes written.
func (k *Kernel) PipeWrite(self *Task, id defs.PipeId_t, buf []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !self.ownsPipe(id) {
		return -1
	}
	p, ok := k.pipes.Get(id)
	if !ok {
		return -1
	}
	return p.Write(buf)
}

// PipeRead implements §4.8's read: -1 if the caller doesn't own id,
// otherwise the number of bytes read (0 if the pipe is empty).
func (k *Kernel) PipeRead(self *Task, id defs.PipeId_t, buf []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !self.ownsPipe(id) {
		return -1
	}
	p, ok := k.pipes.Get(id)
	if !ok {
		return -1
	}
	return p.Read(buf)
}

// PipeClose implements §4.8's close: -1 if the caller doesn't own id,
// otherwise id. Removal is unconditional, like SemClose — a pipe still
// held by another task via fork inheritance is torn down for everyone the
// moment any one owner closes it explicitly.
func (k *Kernel) PipeClose(self *Task, id defs.PipeId_t) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !self.ownsPipe(id) {
		return -1
	}
	self.PipeIDs = removePipeID(self.PipeIDs, id)
	k.forceClosePipeLocked(id)
	return int(id)
}

// forceClosePipeLocked unconditionally removes id from the table. Safe to
// call on an already-removed id (a no-op).
func (k *Kernel) forceClosePipeLocked(id defs.PipeId_t) {
	if _, ok := k.pipes.Get(id); !ok {
		return
	}
	k.pipes.Del(id)
	k.Limits.MaxPipes.Give()
}

// decrementPipeRefLocked drops one reference from id's pipe, destroying it
// only once the refcount reaches zero. Used by exit teardown, where a task
// that dies while still holding an inherited pipe releases just its own
// share.
func (k *Kernel) decrementPipeRefLocked(id defs.PipeId_t) {
	p, ok := k.pipes.Get(id)
	if !ok {
		return
	}
	p.Refcount--
	if p.Refcount <= 0 {
		k.forceClosePipeLocked(id)
	}
}
