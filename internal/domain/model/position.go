package model

import "fmt"

// Position is a per-partition read cursor on the source topic. The reader
// produces positions; only the checkpoint coordinator commits them.
type Position struct {
	Partition int32
	Offset    int64
}

func (p Position) String() string {
	return fmt.Sprintf("%d/%d", p.Partition, p.Offset)
}
