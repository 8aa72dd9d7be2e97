package readfiles

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadField loads a flat field file: one value per line, or several
// whitespace-separated values per line, comments starting with # or %.
func ReadField(filename string) (field []float64) {
	file, err := os.Open(filename)
	if err != nil {
		panic(fmt.Errorf("unable to open file %s\n %s", filename, err))
	}
	defer file.Close()
	reader := bufio.NewReader(file)
	for {
		line, ok := nextLine(reader)
		if !ok {
			break
		}
		for _, f := range strings.Fields(line) {
			var v float64
			if _, err = fmt.Sscanf(f, "%f", &v); err != nil {
				panic(fmt.Errorf("bad field value [%s] in %s", f, filename))
			}
			field = append(field, v)
		}
	}
	return
}
