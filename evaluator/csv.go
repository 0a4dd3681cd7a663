package evaluator

import (
	"encoding/csv"
	"os"
)

// appendCSV appends one data row to path, writing the header first when the
// file does not exist yet.
func appendCSV(path string, header, row []string) error {
	_, statErr := os.Stat(path)
	exists := statErr == nil
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if !exists {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
