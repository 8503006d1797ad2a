package animation

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// track is the ordered keyframe sequence of one bone within one clip.
// Only the value slices matching the owning clip's kind are populated.
type track struct {
	bone  int
	times []float32

	matrices []mgl32.Mat4

	scales       []mgl32.Vec3
	rotations    []mgl32.Quat
	translations []mgl32.Vec3
}

// clip is a registered clip. Tracks are sorted by bone index and never mutated after registration.
type clip struct {
	name       string
	start, end float32
	kind       ClipKind
	tracks     []track
	keyCount   int
}

func (c *clip) info() ClipInfo {
	return ClipInfo{
		Name:       c.name,
		Start:      c.start,
		End:        c.end,
		Kind:       c.kind,
		TrackCount: len(c.tracks),
		KeyCount:   c.keyCount,
	}
}

func (a *animation) AddClip(name string, start, end float32, keys []Key) (int, error) {
	if err := a.checkRange(name, start, end); err != nil {
		return ClipNotFound, err
	}

	tracks := make(map[int]*track)
	for i, k := range keys {
		tr, err := a.trackFor(tracks, name, i, k.Bone, k.Time)
		if err != nil {
			return ClipNotFound, err
		}
		tr.times = append(tr.times, k.Time)
		tr.matrices = append(tr.matrices, k.Value)
	}

	return a.store(&clip{
		name:     name,
		start:    start,
		end:      end,
		kind:     ClipKindMatrix,
		tracks:   sortTracks(tracks),
		keyCount: len(keys),
	})
}

func (a *animation) AddSRTClip(name string, start, end float32, keys []SRTKey) (int, error) {
	if err := a.checkRange(name, start, end); err != nil {
		return ClipNotFound, err
	}

	tracks := make(map[int]*track)
	for i, k := range keys {
		tr, err := a.trackFor(tracks, name, i, k.Bone, k.Time)
		if err != nil {
			return ClipNotFound, err
		}
		l := k.Rotation.Len()
		if l == 0 || math.IsNaN(float64(l)) {
			return ClipNotFound, fmt.Errorf("%w: clip %q key %d has a degenerate rotation", ErrInvalidArgument, name, i)
		}
		tr.times = append(tr.times, k.Time)
		tr.scales = append(tr.scales, k.Scale)
		tr.rotations = append(tr.rotations, k.Rotation.Scale(1/l))
		tr.translations = append(tr.translations, k.Translation)
	}

	return a.store(&clip{
		name:     name,
		start:    start,
		end:      end,
		kind:     ClipKindSRT,
		tracks:   sortTracks(tracks),
		keyCount: len(keys),
	})
}

func (a *animation) FindClip(name string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i, ok := a.nameToIndex[name]; ok {
		return i
	}
	return ClipNotFound
}

func (a *animation) ClipCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.clips)
}

func (a *animation) Clip(i int) (ClipInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= len(a.clips) {
		return ClipInfo{}, false
	}
	return a.clips[i].info(), true
}

// checkRange validates the clip's time span.
func (a *animation) checkRange(name string, start, end float32) error {
	if isNaN(start) || isNaN(end) {
		return fmt.Errorf("%w: clip %q has a NaN time range", ErrInvalidArgument, name)
	}
	if end < start {
		return fmt.Errorf("%w: clip %q ends (%g) before it starts (%g)", ErrInvalidArgument, name, end, start)
	}
	return nil
}

// trackFor returns the track for bone, creating it on first use, after checking that the key
// refers to a valid bone and advances that bone's timeline.
func (a *animation) trackFor(tracks map[int]*track, name string, keyIndex, bone int, t float32) (*track, error) {
	if bone < 0 || bone >= a.skel.BoneCount() {
		return nil, fmt.Errorf("%w: clip %q key %d targets bone %d, skeleton has %d bones", ErrInvalidArgument, name, keyIndex, bone, a.skel.BoneCount())
	}
	if isNaN(t) {
		return nil, fmt.Errorf("%w: clip %q key %d has a NaN time", ErrInvalidArgument, name, keyIndex)
	}

	tr, ok := tracks[bone]
	if !ok {
		tr = &track{bone: bone}
		tracks[bone] = tr
		return tr, nil
	}
	if last := tr.times[len(tr.times)-1]; t <= last {
		return nil, fmt.Errorf("%w: clip %q key %d for bone %d at %g does not follow %g", ErrInvalidArgument, name, keyIndex, bone, t, last)
	}
	return tr, nil
}

// store registers c according to the duplicate policy.
func (a *animation) store(c *clip) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i, ok := a.nameToIndex[c.name]; ok {
		if a.duplicatePolicy != DuplicateReplace {
			return ClipNotFound, fmt.Errorf("%w: %q", ErrDuplicateClip, c.name)
		}
		a.clips[i] = c
		a.logger.Debug("clip replaced", "clip", c.name, "index", i, "kind", c.kind.String(), "tracks", len(c.tracks))
		return i, nil
	}

	i := len(a.clips)
	a.clips = append(a.clips, c)
	a.nameToIndex[c.name] = i
	a.logger.Debug("clip added", "clip", c.name, "index", i, "kind", c.kind.String(), "tracks", len(c.tracks), "keys", c.keyCount)
	return i, nil
}

func sortTracks(tracks map[int]*track) []track {
	out := make([]track, 0, len(tracks))
	for _, tr := range tracks {
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].bone < out[j].bone })
	return out
}

func isNaN(f float32) bool {
	return f != f
}
