// Package command wraps image diffs into undoable commands
package command

import (
	"github.com/google/uuid"

	"voxeledit/internal/models"
	"voxeledit/pkg/diff"
)

// Observer is notified after a command changed the image buffer
type Observer func(img *models.Image)

// ImageDiffCommand undoes and redoes one gesture on an image.
//
// The command owns its diff exclusively; callers must not keep using a diff
// after handing it over
type ImageDiffCommand struct {
	id        uuid.UUID
	name      string
	image     *models.Image
	diff      *diff.ImageDiff
	observers []Observer
}

// NewImageDiffCommand takes ownership of d. The diff is shrunk to its content
func NewImageDiffCommand(name string, img *models.Image, d *diff.ImageDiff, observers ...Observer) *ImageDiffCommand {
	owned := d.Move()
	owned.Shrink()
	return &ImageDiffCommand{
		id:        uuid.Must(uuid.NewV7()),
		name:      name,
		image:     img,
		diff:      owned,
		observers: observers,
	}
}

// ID returns the unique identifier of the command
func (c *ImageDiffCommand) ID() uuid.UUID { return c.id }

// Name returns the human readable description given at creation
func (c *ImageDiffCommand) Name() string { return c.name }

// Diff exposes the owned diff for inspection
func (c *ImageDiffCommand) Diff() *diff.ImageDiff { return c.diff }

// Size returns the memory held by the command's diff in bytes
func (c *ImageDiffCommand) Size() int { return c.diff.Size() }

// Undo reverts the diff on the image and notifies the observers
func (c *ImageDiffCommand) Undo() {
	unlock := c.image.Lock()
	c.diff.RevertDiff(c.image)
	unlock()
	c.notify()
}

// Redo applies the diff on the image and notifies the observers
func (c *ImageDiffCommand) Redo() {
	unlock := c.image.Lock()
	c.diff.ApplyDiff(c.image)
	unlock()
	c.notify()
}

// Apply is Redo; it replays the gesture the command was built from
func (c *ImageDiffCommand) Apply() { c.Redo() }

func (c *ImageDiffCommand) notify() {
	for _, o := range c.observers {
		o(c.image)
	}
}
