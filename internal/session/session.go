// Package session drives an interactive editing session: one volume, a
// baseline image used as propagation background, and the undo history.
// Every draw or propagate command is one gesture and one history entry
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"voxeledit/internal/logging"
	"voxeledit/internal/models"
	"voxeledit/pkg/command"
	"voxeledit/pkg/config"
	"voxeledit/pkg/diff"
	"voxeledit/pkg/draw"
	"voxeledit/pkg/history"
	"voxeledit/pkg/pixel"
	"voxeledit/pkg/propagation"
	"voxeledit/pkg/visualization"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
	ErrQuit           = errors.New("quit")
)

// Session owns the edited volume and its history. Not safe for concurrent use
type Session struct {
	cfg        *config.Config
	log        logging.Logger
	image      *models.Image
	background *models.Image
	roi        *models.Image
	history    *history.History

	// changes counts buffer modification notifications
	changes int
}

// New creates a session with a blank volume described by cfg.Volume
func New(cfg *config.Config, log logging.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t, err := pixel.ParseType(cfg.Volume.PixelType)
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg: cfg,
		log: logging.OrNop(log),
		history: history.New(history.Limits{
			MaxCommands: cfg.History.MaxCommands,
			MaxMemory:   cfg.History.MaxMemory,
		}, log),
	}
	s.reset(models.NewImage(cfg.Volume.Size, cfg.Volume.Spacing, cfg.Volume.Origin, t))
	return s, nil
}

func (s *Session) reset(img *models.Image) {
	s.image = img
	s.background = img.Clone()
	s.roi = nil
	s.history.Clear()
}

// Image returns the edited volume
func (s *Session) Image() *models.Image { return s.image }

// Background returns the baseline used by propagation
func (s *Session) Background() *models.Image { return s.background }

// ROI returns the mask limiting writes, nil when unrestricted
func (s *Session) ROI() *models.Image { return s.roi }

// History returns the undo history
func (s *Session) History() *history.History { return s.history }

// Changes returns how many times undo or redo modified the buffer
func (s *Session) Changes() int { return s.changes }

type handler func(s *Session, args []string, opts map[string]string) (string, error)

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"new":       (*Session).cmdNew,
		"draw":      (*Session).cmdDraw,
		"propagate": (*Session).cmdPropagate,
		"set":       (*Session).cmdSet,
		"get":       (*Session).cmdGet,
		"undo":      (*Session).cmdUndo,
		"redo":      (*Session).cmdRedo,
		"history":   (*Session).cmdHistory,
		"hash":      (*Session).cmdHash,
		"stats":     (*Session).cmdStats,
		"baseline":  (*Session).cmdBaseline,
		"roi":       (*Session).cmdROI,
		"snapshot":  (*Session).cmdSnapshot,
		"help":      (*Session).cmdHelp,
		"quit":      (*Session).cmdQuit,
		"exit":      (*Session).cmdQuit,
	}
}

// Commands lists the command names understood by Execute
func Commands() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute parses and runs one command line. Positional arguments come first;
// key=value options may appear anywhere
func (s *Session) Execute(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.ToLower(fields[0])
	h, ok := handlers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	var args []string
	opts := make(map[string]string)
	for _, f := range fields[1:] {
		if k, v, found := strings.Cut(f, "="); found {
			opts[strings.ToLower(k)] = v
			continue
		}
		args = append(args, f)
	}
	return h(s, args, opts)
}

func (s *Session) notify(*models.Image) {
	s.changes++
}

// commit turns a gesture's diff into a history entry. Empty diffs are dropped
func (s *Session) commit(name string, d *diff.ImageDiff) *command.ImageDiffCommand {
	if d.NumElements() == 0 {
		return nil
	}
	cmd := command.NewImageDiffCommand(name, s.image, d, s.notify)
	s.history.Push(cmd)
	return cmd
}

func (s *Session) cmdNew(args []string, opts map[string]string) (string, error) {
	if len(args) != 3 && len(args) != 4 {
		return "", fmt.Errorf("%w: usage: new <x> <y> <z> [type]", ErrBadArgument)
	}
	var size models.Size
	for i := range size {
		n, err := strconv.Atoi(args[i])
		if err != nil || n <= 0 {
			return "", fmt.Errorf("%w: size %q", ErrBadArgument, args[i])
		}
		size[i] = n
	}
	t := s.image.Type
	if len(args) == 4 {
		var err error
		if t, err = pixel.ParseType(args[3]); err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadArgument, err)
		}
	}
	s.reset(models.NewImage(size, s.cfg.Volume.Spacing, s.cfg.Volume.Origin, t))
	s.log.Info("volume created", "size", size, "type", t.String())
	return fmt.Sprintf("volume %dx%dx%d %s", size[0], size[1], size[2], t), nil
}

func (s *Session) cmdDraw(args []string, opts map[string]string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("%w: usage: draw <axis> <x,y,z> [<x,y,z> ...] [value=] [thickness=] [overwrite=]", ErrBadArgument)
	}
	o, err := draw.ParseOrientation(args[0])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	points, err := parsePoints(args[1:])
	if err != nil {
		return "", err
	}
	value, err := s.value(opts, s.cfg.Drawing.Value)
	if err != nil {
		return "", err
	}
	thickness, err := floatOpt(opts, "thickness", s.cfg.Drawing.Thickness)
	if err != nil {
		return "", err
	}
	if thickness <= 0 {
		return "", fmt.Errorf("%w: thickness must be positive", ErrBadArgument)
	}
	overwrite, err := boolOpt(opts, "overwrite", s.cfg.Drawing.Overwrite)
	if err != nil {
		return "", err
	}

	drawer := draw.NewLineDrawer(s.image, s.roi)
	drawer.Logger = s.log

	unlock := s.image.Lock()
	gesture := diff.New(s.image.PixelSize())
	if len(points) == 1 {
		gesture.Append(drawer.Draw(o, points[0], points[0], value, thickness, overwrite))
	}
	for i := 1; i < len(points); i++ {
		gesture.Append(drawer.Draw(o, points[i-1], points[i], value, thickness, overwrite))
	}
	unlock()

	n := gesture.NumElements()
	s.commit("draw", gesture)
	return fmt.Sprintf("%d voxels drawn", n), nil
}

func (s *Session) cmdPropagate(args []string, opts map[string]string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("%w: usage: propagate <x,y,z> [<x,y,z> ...] [value=] [radius=] [mode=] [overwrite=] [connectivity=]", ErrBadArgument)
	}
	seeds, err := parsePoints(args)
	if err != nil {
		return "", err
	}
	value, err := s.value(opts, s.cfg.Propagation.Value)
	if err != nil {
		return "", err
	}
	radius, err := floatOpt(opts, "radius", s.cfg.Propagation.Radius)
	if err != nil {
		return "", err
	}
	overwrite, err := boolOpt(opts, "overwrite", s.cfg.Propagation.Overwrite)
	if err != nil {
		return "", err
	}
	modeName := s.cfg.Propagation.Mode
	if m, ok := opts["mode"]; ok {
		modeName = m
	}
	mode, err := propagation.ParseMode(modeName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	connectivity := s.cfg.Propagation.Connectivity
	if c, ok := opts["connectivity"]; ok {
		if connectivity, err = strconv.Atoi(c); err != nil {
			return "", fmt.Errorf("%w: connectivity %q", ErrBadArgument, c)
		}
	}
	switch connectivity {
	case 6, 18, 26:
	default:
		return "", fmt.Errorf("%w: connectivity must be 6, 18 or 26", ErrBadArgument)
	}

	prop := propagation.NewMinMaxPropagation(s.background, s.image, s.roi)
	prop.Connectivity = propagation.Connectivity(connectivity)
	prop.Logger = s.log

	unlock := s.image.Lock()
	d := prop.Propagate(seeds, value, radius, overwrite, mode)
	unlock()

	n := d.NumElements()
	s.commit("propagate", d)
	return fmt.Sprintf("%d voxels propagated", n), nil
}

func (s *Session) cmdSet(args []string, opts map[string]string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: set <x,y,z> <value>", ErrBadArgument)
	}
	c, err := s.parseVoxel(args[0])
	if err != nil {
		return "", err
	}
	value, err := pixel.Parse(s.image.Type, args[1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArgument, err)
	}

	index := s.image.IndexOf(c)
	d := diff.New(s.image.PixelSize())
	unlock := s.image.Lock()
	old := append([]byte(nil), s.image.Pixel(index)...)
	s.image.SetPixel(index, value)
	unlock()
	d.AddDiff(index, old, value)
	s.commit("set", d)
	return fmt.Sprintf("%s -> %s", pixel.Format(s.image.Type, old), pixel.Format(s.image.Type, value)), nil
}

func (s *Session) cmdGet(args []string, opts map[string]string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: get <x,y,z>", ErrBadArgument)
	}
	c, err := s.parseVoxel(args[0])
	if err != nil {
		return "", err
	}
	return pixel.Format(s.image.Type, s.image.Pixel(s.image.IndexOf(c))), nil
}

func (s *Session) cmdUndo(args []string, opts map[string]string) (string, error) {
	c, err := s.history.Undo()
	if err != nil {
		return "", err
	}
	return "undone " + c.Name(), nil
}

func (s *Session) cmdRedo(args []string, opts map[string]string) (string, error) {
	c, err := s.history.Redo()
	if err != nil {
		return "", err
	}
	return "redone " + c.Name(), nil
}

func (s *Session) cmdHistory(args []string, opts map[string]string) (string, error) {
	var b strings.Builder
	for i, c := range s.history.Commands() {
		marker := " "
		if i < s.history.Cursor() {
			marker = "*"
		}
		cmd := c.(*command.ImageDiffCommand)
		fmt.Fprintf(&b, "%s %d %s %s voxels=%d bytes=%d\n",
			marker, i, cmd.ID(), cmd.Name(), cmd.Diff().NumElements(), cmd.Size())
	}
	fmt.Fprintf(&b, "%d commands, %d bytes", s.history.Len(), s.history.Size())
	return b.String(), nil
}

func (s *Session) cmdHash(args []string, opts map[string]string) (string, error) {
	return fmt.Sprintf("%016x", s.image.Checksum()), nil
}

// cmdStats summarizes the baseline values under the last applied command
func (s *Session) cmdStats(args []string, opts map[string]string) (string, error) {
	if !s.history.CanUndo() {
		return "", history.ErrNothingToUndo
	}
	last := s.history.Commands()[s.history.Cursor()-1].(*command.ImageDiffCommand)
	st := propagation.RegionStatistics(s.background, last.Diff())
	return fmt.Sprintf("count=%d mean=%g stddev=%g min=%g max=%g", st.Count, st.Mean, st.StdDev, st.Min, st.Max), nil
}

// cmdBaseline makes the current volume the propagation background
func (s *Session) cmdBaseline(args []string, opts map[string]string) (string, error) {
	s.background = s.image.Clone()
	return "baseline updated", nil
}

// cmdROI restricts later gestures to the voxels that are currently non-zero
func (s *Session) cmdROI(args []string, opts map[string]string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: usage: roi set|clear", ErrBadArgument)
	}
	switch args[0] {
	case "set":
		s.roi = s.image.Clone()
		return "roi set", nil
	case "clear":
		s.roi = nil
		return "roi cleared", nil
	default:
		return "", fmt.Errorf("%w: roi %q", ErrBadArgument, args[0])
	}
}

func (s *Session) cmdSnapshot(args []string, opts map[string]string) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", fmt.Errorf("%w: usage: snapshot <axis> <position> [file] [window=lo:hi]", ErrBadArgument)
	}
	o, err := draw.ParseOrientation(args[0])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	pos, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("%w: position %q", ErrBadArgument, args[1])
	}
	file := filepath.Join(s.cfg.Output.SnapshotDir, fmt.Sprintf("slice_%s_%03d.png", o, pos))
	if len(args) == 3 {
		file = args[2]
	}

	viewer := visualization.NewViewer(s.image)
	if w, ok := opts["window"]; ok {
		lo, hi, err := parseWindow(w)
		if err != nil {
			return "", err
		}
		viewer.SetWindow(lo, hi)
	}
	img, err := viewer.ExtractSlice(o, pos)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	if err := ensureDir(file); err != nil {
		return "", err
	}
	if err := viewer.SaveSlice(img, file); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return "saved " + file, nil
}

func (s *Session) cmdHelp(args []string, opts map[string]string) (string, error) {
	return "commands: " + strings.Join(Commands(), " "), nil
}

func (s *Session) cmdQuit(args []string, opts map[string]string) (string, error) {
	return "", ErrQuit
}

func (s *Session) value(opts map[string]string, fallback string) ([]byte, error) {
	text := fallback
	if v, ok := opts["value"]; ok {
		text = v
	}
	value, err := pixel.Parse(s.image.Type, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	return value, nil
}

func (s *Session) parseVoxel(text string) (models.Coordinates, error) {
	c, err := parseCoordinates(text)
	if err != nil {
		return c, err
	}
	if !s.image.Contains(c[0], c[1], c[2]) {
		return c, fmt.Errorf("%w: voxel %v outside volume %v", ErrBadArgument, c, s.image.Size)
	}
	return c, nil
}
