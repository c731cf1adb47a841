package data

import (
	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/proxy"
	"github.com/gekko3d/realtimemesh/rt/thread"
)

// CommitStatus is the outcome of committing a ProxyCommandBatch.
type CommitStatus uint8

const (
	// CommitNoUpdate means the batch carried no commands.
	CommitNoUpdate CommitStatus = iota
	// CommitNoProxy means there was no render proxy to apply the batch to.
	CommitNoProxy
	// CommitUpdated means the batch was applied and the owner was notified.
	CommitUpdated
)

func (s CommitStatus) String() string {
	switch s {
	case CommitNoUpdate:
		return "NoUpdate"
	case CommitNoProxy:
		return "NoProxy"
	case CommitUpdated:
		return "Updated"
	default:
		return "Unknown"
	}
}

// ProxyCommandBatch collects proxy mutations produced by data side edits and
// hands them to the render thread as one unit on Commit.
//
// A batch targets the render proxy the mesh had when it was opened and is
// live only if there was one. Commands added to a batch that is not live are
// dropped: a proxy created later is initialized from the full data state
// instead. For the same reason a batch whose target was released or replaced
// before Commit drops its commands.
type ProxyCommandBatch struct {
	shared   *SharedResources
	target   *proxy.RenderProxy
	recreate bool
	commands []Command
}

// NewProxyCommandBatch opens a batch against m.
func NewProxyCommandBatch(m *Mesh) *ProxyCommandBatch {
	return newCommandBatch(m.shared, m.shared.Proxy())
}

func newCommandBatch(shared *SharedResources, target *proxy.RenderProxy) *ProxyCommandBatch {
	return &ProxyCommandBatch{shared: shared, target: target}
}

func (b *ProxyCommandBatch) IsLive() bool { return b.target != nil }

// Target is the proxy the batch records commands for.
func (b *ProxyCommandBatch) Target() *proxy.RenderProxy { return b.target }

// RequiresProxyRecreate reports whether any command asked for the owner to
// rebuild its presented proxy.
func (b *ProxyCommandBatch) RequiresProxyRecreate() bool { return b.recreate }

// Commands returns the pending commands in submission order.
func (b *ProxyCommandBatch) Commands() []Command { return b.commands }

func (b *ProxyCommandBatch) NumCommands() int { return len(b.commands) }

// Add appends a typed command.
func (b *ProxyCommandBatch) Add(cmd Command, requiresRecreate bool) {
	if b.target == nil {
		return
	}
	b.commands = append(b.commands, cmd)
	b.recreate = b.recreate || requiresRecreate
}

func (b *ProxyCommandBatch) AddMeshTask(fn func(*proxy.RenderProxy), requiresRecreate bool) {
	b.Add(meshTask{fn: fn}, requiresRecreate)
}

func (b *ProxyCommandBatch) AddLODTask(key core.LODKey, fn func(*proxy.LODProxy), requiresRecreate bool) {
	b.Add(lodTask{key: key, fn: fn}, requiresRecreate)
}

func (b *ProxyCommandBatch) AddSectionGroupTask(key core.SectionGroupKey, fn func(*proxy.SectionGroupProxy), requiresRecreate bool) {
	b.Add(sectionGroupTask{key: key, fn: fn}, requiresRecreate)
}

func (b *ProxyCommandBatch) AddSectionTask(key core.SectionKey, fn func(*proxy.SectionProxy), requiresRecreate bool) {
	b.Add(sectionTask{key: key, fn: fn}, requiresRecreate)
}

// Commit sends the batch to the render thread. The returned future resolves
// once the commands ran, the proxy refreshed its derived state and the owner
// was marked dirty on the game thread. Commands recorded against a proxy that
// is no longer the mesh's proxy are dropped with CommitNoProxy; Commit never
// creates a proxy. A committed batch is empty and targets the mesh's current
// proxy, so it may be reused.
//
// Commit must not be called while holding the mesh guard.
func (b *ProxyCommandBatch) Commit() *thread.Future[CommitStatus] {
	target := b.target
	current := b.shared.Proxy()
	b.target = current
	if len(b.commands) == 0 {
		return thread.Resolved(CommitNoUpdate)
	}
	if current == nil || current != target {
		b.shared.log.Debugf("realtime mesh %s: dropping %d commands for a released proxy", b.shared.id, len(b.commands))
		b.reset()
		return thread.Resolved(CommitNoProxy)
	}
	f, _ := b.dispatch(current)
	return f
}

func (b *ProxyCommandBatch) reset() {
	b.commands = nil
	b.recreate = false
}

// dispatch runs the commands on the render thread and joins the render side
// completion with the owner notification on the game thread. applied closes
// once the render side is done.
func (b *ProxyCommandBatch) dispatch(p *proxy.RenderProxy) (*thread.Future[CommitStatus], <-chan struct{}) {
	cmds, recreate := b.commands, b.recreate
	b.reset()

	shared := b.shared
	promise := thread.NewPromise[CommitStatus]()
	applied := make(chan struct{})
	barrier := thread.NewBarrier(2, func() { promise.SetValue(CommitUpdated) })

	err := shared.renderThread.RunOrEnqueue("ProxyCommandBatch", func() {
		defer close(applied)
		if p.IsReleased() {
			promise.SetValue(CommitNoProxy)
			return
		}
		for _, cmd := range cmds {
			if err := cmd.Apply(p); err != nil {
				shared.log.Errorf("realtime mesh %s: %s: %v", shared.id, cmd.Kind(), err)
			}
		}
		p.HandleUpdates(recreate)
		barrier.Arrive()
	})
	if err != nil {
		shared.log.Warnf("realtime mesh %s: dropping %d proxy commands: %v", shared.id, len(cmds), err)
		close(applied)
		promise.SetValue(CommitNoProxy)
		return promise.Future(), applied
	}

	shared.gameThread.RunOrEnqueue(func() {
		if owner := shared.Owner(); owner != nil {
			owner.MarkRenderStateDirty(recreate)
		}
		barrier.Arrive()
	})
	return promise.Future(), applied
}
