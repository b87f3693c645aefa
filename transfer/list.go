package transfer

// ListDirectory returns the LIST output for path as text terminated by a
// single NUL byte. An empty path lists the working directory; an empty
// directory yields []byte{0}.
func (c *Connection) ListDirectory(p string) ([]byte, error) {
	j := c.newJob(OpList, p, "", NoResume)
	if err := c.begin(j.op.String()); err != nil {
		return nil, err
	}
	defer c.end()
	c.setState(StatePreparing)

	tr, err := c.session(j.op.String())
	if err != nil {
		return nil, c.finish(j, nil, err)
	}

	cb := newMemoryCallback(c.gate, nil, c.maxMemory)
	if err := c.run(j, tr, cb, &Request{Op: OpList, Path: p, Sink: cb}); err != nil {
		return nil, c.finish(j, cb, err)
	}
	text := append(cb.takeBuffer(), 0)
	return text, c.finish(j, cb, nil)
}
