package animator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/go-gl/mathgl/mgl32"
)

func (a *animator) Update(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	n := len(a.states)
	if n == 0 {
		return ctx.Err()
	}

	batches := (n + a.batchSize - 1) / a.batchSize
	errs := make([]error, batches)

	// The pool's Wait blocks until workers idle out, so each frame joins on its own WaitGroup.
	var wg sync.WaitGroup
	var cancelled error
	submitted := 0
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}

		lo := b * a.batchSize
		hi := min(lo+a.batchSize, n)
		wg.Add(1)
		a.pool.SubmitTask(worker.Task{
			ID: b,
			Do: func() (any, error) {
				defer wg.Done()
				errs[b] = a.evaluateRange(lo, hi)
				return nil, nil
			},
		})
		submitted = hi
	}
	wg.Wait()

	if submitted > 0 {
		a.markDirty(0, uint32(submitted))
	}
	if cancelled != nil {
		a.logger.Debug("update cancelled", "evaluated", submitted, "instances", n)
		return cancelled
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("update failed", "error", err)
		return err
	}
	return nil
}

// evaluateRange samples the poses of instances [lo, hi). It runs on a pool worker while Update holds a.mu,
// so it reads playback state freely and writes only its own pose slots.
func (a *animator) evaluateRange(lo, hi int) error {
	var from, to []mgl32.Mat4
	var errs []error

	for i := lo; i < hi; i++ {
		state := a.states[i]
		pose := a.pose(uint32(i))

		switch {
		case state.clipIndex == animation.ClipNotFound:
			copy(pose, a.bindPose)

		case !state.blending:
			if err := a.anim.Evaluate(state.clipIndex, state.time, state.loop, pose, a.boneCount); err != nil {
				errs = append(errs, fmt.Errorf("instance %d: %w", i, err))
			}

		default:
			if from == nil {
				from = make([]mgl32.Mat4, a.boneCount)
				to = make([]mgl32.Mat4, a.boneCount)
			}
			if err := a.anim.EvaluateLocal(state.clipIndex, state.time, state.loop, from); err != nil {
				errs = append(errs, fmt.Errorf("instance %d: %w", i, err))
				continue
			}
			if err := a.anim.EvaluateLocal(state.blendTo, state.blendToTime, state.loop, to); err != nil {
				errs = append(errs, fmt.Errorf("instance %d: %w", i, err))
				continue
			}
			animation.BlendLocals(from, to, state.blendWeight(), from)
			if err := a.skel.ComposeAbsolute(from, pose, a.boneCount); err != nil {
				errs = append(errs, fmt.Errorf("instance %d: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}
