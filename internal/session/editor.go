package session

// EditState is the editor surface state of one block on this client.
type EditState int

const (
	Viewing EditState = iota
	Editing
)

func (s EditState) String() string {
	if s == Editing {
		return "editing"
	}
	return "viewing"
}

// BeginEdit moves a block into Editing when this client holds permission for
// it. Otherwise the block stays in Viewing and an edit request is sent; a
// later BeginEdit succeeds once the grant has arrived.
func (c *Coordinator) BeginEdit(blockID string) EditState {
	if !c.permissions.Has(blockID) {
		c.RequestEditPermission(blockID, "")
		return Viewing
	}
	c.mu.Lock()
	c.editing[blockID] = Editing
	c.mu.Unlock()
	return Editing
}

// EndEdit returns a block to Viewing, on save or cancel.
func (c *Coordinator) EndEdit(blockID string) {
	c.mu.Lock()
	delete(c.editing, blockID)
	c.mu.Unlock()
}

func (c *Coordinator) State(blockID string) EditState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing[blockID]
}
