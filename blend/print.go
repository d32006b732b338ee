package blend

import (
	"fmt"
	"io"
)

func (b Block) String() string {
	return fmt.Sprintf("%-4s offset=%d size=%d addr=%#x sdna=%d count=%d",
		b.Name(), b.Offset, b.Size, b.OldAddr, b.SDNAIndex, b.Count)
}

// Fprint writes one line per block to w.
func Fprint(w io.Writer, blocks []Block) error {
	for _, b := range blocks {
		if _, err := fmt.Fprintln(w, b); err != nil {
			return err
		}
	}
	return nil
}
