package nastydata

// Status lists what has been downloaded and indexed so far.
type Status struct {
	Downloads []Download
	Indexed   []IndexedFile
}

// Status returns the recorded downloads and indexed files.
func (c *Client) Status() (Status, error) {
	if c.state == nil {
		return Status{}, ErrNoStateStore
	}
	downloads, err := c.state.Downloads()
	if err != nil {
		return Status{}, err
	}
	indexed, err := c.state.IndexedAll()
	if err != nil {
		return Status{}, err
	}
	return Status{Downloads: downloads, Indexed: indexed}, nil
}
