package sim

// endpoint identifies one side of a connection.
type endpoint struct {
	DeviceID    string
	InterfaceID string
}

// Connection is a bidirectional link between two device interfaces
// (spec.md §3): "at most once" between any given pair of endpoints.
type Connection struct {
	ID                     string
	SourceDeviceID         string
	SourceInterfaceID      string
	TargetDeviceID         string
	TargetInterfaceID      string
	IsActive               bool
}

func (c *Connection) incident(e endpoint) bool {
	return (c.SourceDeviceID == e.DeviceID && c.SourceInterfaceID == e.InterfaceID) ||
		(c.TargetDeviceID == e.DeviceID && c.TargetInterfaceID == e.InterfaceID)
}

// peer returns the endpoint on the other side of c from e — spec.md §3's
// "find_connection(d, i) matches both (source, target) orientations
// symmetrically".
func (c *Connection) peer(e endpoint) endpoint {
	if c.SourceDeviceID == e.DeviceID && c.SourceInterfaceID == e.InterfaceID {
		return endpoint{c.TargetDeviceID, c.TargetInterfaceID}
	}
	return endpoint{c.SourceDeviceID, c.SourceInterfaceID}
}
