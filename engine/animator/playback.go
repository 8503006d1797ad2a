package animator

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
)

func (a *animator) PlayAnimation(instanceIndex uint32, clipIndex int, loop bool) error {
	info, ok := a.anim.Clip(clipIndex)
	if !ok {
		return fmt.Errorf("%w: index %d", animation.ErrClipNotFound, clipIndex)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return fmt.Errorf("%w: %d of %d", ErrInstanceRange, instanceIndex, len(a.states))
	}
	a.states[instanceIndex] = instanceState{
		clipIndex: clipIndex,
		time:      info.Start,
		speed:     1,
		loop:      loop,
	}
	a.logger.Debug("play", "instance", instanceIndex, "clip", info.Name, "loop", loop)
	return nil
}

func (a *animator) BlendToAnimation(instanceIndex uint32, targetClipIndex int, blendDuration float32) error {
	info, ok := a.anim.Clip(targetClipIndex)
	if !ok {
		return fmt.Errorf("%w: index %d", animation.ErrClipNotFound, targetClipIndex)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return fmt.Errorf("%w: %d of %d", ErrInstanceRange, instanceIndex, len(a.states))
	}
	state := &a.states[instanceIndex]
	if state.clipIndex == animation.ClipNotFound || blendDuration <= 0 {
		state.clipIndex = targetClipIndex
		state.time = info.Start
		state.blending = false
		state.blendElapsed = 0
		return nil
	}

	state.blending = true
	state.blendTo = targetClipIndex
	state.blendToTime = info.Start
	state.blendDuration = blendDuration
	state.blendElapsed = 0
	a.logger.Debug("blend", "instance", instanceIndex, "to", info.Name, "duration", blendDuration)
	return nil
}

func (a *animator) CancelBlend(instanceIndex uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return
	}
	a.states[instanceIndex].blending = false
	a.states[instanceIndex].blendElapsed = 0
}

func (a *animator) IsBlending(instanceIndex uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return false
	}
	return a.states[instanceIndex].blending
}

func (a *animator) BlendProgress(instanceIndex uint32) float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return 0
	}
	return a.states[instanceIndex].blendWeight()
}

func (a *animator) SetAnimationTime(instanceIndex uint32, time float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return
	}
	a.states[instanceIndex].time = time
}

func (a *animator) SetAnimationSpeed(instanceIndex uint32, speed float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return
	}
	a.states[instanceIndex].speed = speed
}

func (a *animator) AnimationTime(instanceIndex uint32) float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return 0
	}
	return a.states[instanceIndex].time
}

func (a *animator) PrepareFrame(deltaTime float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.states {
		state := &a.states[i]
		if state.clipIndex == animation.ClipNotFound {
			continue
		}

		info, ok := a.anim.Clip(state.clipIndex)
		if !ok {
			continue
		}
		state.time = advance(state.time, deltaTime*state.speed, info, state.loop)

		if !state.blending {
			continue
		}
		state.blendElapsed += deltaTime
		if target, ok := a.anim.Clip(state.blendTo); ok {
			state.blendToTime = advance(state.blendToTime, deltaTime*state.speed, target, state.loop)
		}
		if state.blendElapsed >= state.blendDuration {
			state.clipIndex = state.blendTo
			state.time = state.blendToTime
			state.blending = false
			state.blendElapsed = 0
			a.logger.Debug("blend complete", "instance", i, "clip", state.clipIndex)
		}
	}
}

// blendWeight is the fraction of the blend elapsed, clamped to [0, 1].
func (s *instanceState) blendWeight() float32 {
	if !s.blending || s.blendDuration <= 0 {
		return 0
	}
	return min(s.blendElapsed/s.blendDuration, 1)
}

// advance moves a playback time by delta within the clip's range. Looping playback wraps into
// [start, end); otherwise the time holds at the nearer end.
func advance(t, delta float32, info animation.ClipInfo, loop bool) float32 {
	t += delta
	if !loop {
		return common.ClampTime(t, info.Start, info.End)
	}
	if info.Duration() > 0 && !(t >= info.Start && t <= info.End) {
		return common.WrapTime(t, info.Start, info.End)
	}
	return t
}
