package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/mortar/IGA"
	"github.com/notargets/mortar/geometry2D"
)

// ReadIGAMesh loads a multipatch NURBS surface from the text format written
// by the GiD preprocessor plugin. The file carries per patch the polynomial
// degrees, the two knot vectors, the weighted control net with global DOF
// indices, and optional trimming loops; after the patches follow optional
// clamped-DOF and patch-continuity blocks.
func ReadIGAMesh(filename string, verbose bool) (m *IGA.Mesh) {
	var (
		file *os.File
		err  error
	)
	if verbose {
		fmt.Printf("Reading IGA mesh file named: %s\n", filename)
	}
	if file, err = os.Open(filename); err != nil {
		panic(fmt.Errorf("unable to open file %s\n %s", filename, err))
	}
	defer file.Close()
	return readIGAMesh(bufio.NewReader(file), verbose)
}

func readIGAMesh(reader *bufio.Reader, verbose bool) (m *IGA.Mesh) {
	name := readLabel(reader, "MESH")
	numPatches := readNumber(reader, "NUMPATCHES")
	patches := make([]*IGA.PatchSurface, numPatches)
	for n := 0; n < numPatches; n++ {
		patches[n] = readPatch(reader)
	}
	m = IGA.NewMesh(name, patches)
	// Optional trailing blocks in any order
	for {
		line, ok := nextLine(reader)
		if !ok {
			break
		}
		ind := strings.Index(line, "=")
		if ind < 0 {
			panic(fmt.Errorf("badly formed input line [%s], should have an =", line))
		}
		var count int
		if _, err := fmt.Sscanf(line[ind+1:], "%d", &count); err != nil {
			panic(fmt.Errorf("unable to read number from token: [%s]", line[ind+1:]))
		}
		switch key := strings.Trim(line[:ind], " \t"); key {
		case "DIRICHLET":
			readDirichlet(reader, m, count)
		case "CONTINUITY":
			readContinuity(reader, m, count)
		default:
			panic(fmt.Errorf("unknown block [%s]", key))
		}
	}
	if verbose {
		fmt.Printf("Read IGA mesh [%s]: %d patches, %d DOFs, %d continuity conditions\n",
			name, numPatches, m.NumDofs, len(m.WeakConditions))
	}
	return
}

func readPatch(reader *bufio.Reader) (ps *IGA.PatchSurface) {
	var (
		pU, pV int
		err    error
	)
	line := getLineNoComments(reader)
	if !strings.HasPrefix(line, "PATCH") {
		panic(fmt.Errorf("expected PATCH block, have [%s]", line))
	}
	if _, err = fmt.Sscanf(getToken(reader, "PDEGREES"), "%d %d", &pU, &pV); err != nil {
		panic(err)
	}
	knotsU := readFloats(reader, readNumber(reader, "NUKNOTS"))
	knotsV := readFloats(reader, readNumber(reader, "NVKNOTS"))
	var nU, nV int
	if _, err = fmt.Sscanf(getToken(reader, "NUMCP"), "%d %d", &nU, &nV); err != nil {
		panic(err)
	}
	cp := make([]IGA.ControlPoint, nU*nV)
	for i := range cp {
		line = getLineNoComments(reader)
		c := &cp[i]
		if _, err = fmt.Sscanf(line, "%d %f %f %f %f",
			&c.DofIndex, &c.X[0], &c.X[1], &c.X[2], &c.W); err != nil {
			panic(fmt.Errorf("bad control point line [%s]: %s", line, err))
		}
	}
	ps = IGA.NewPatchSurface(pU, pV, knotsU, knotsV, cp)
	numLoops := readNumber(reader, "TRIMMING")
	if numLoops > 0 {
		ps.Trim = &IGA.Trimming{}
		for l := 0; l < numLoops; l++ {
			nVerts := readNumber(reader, "LOOP")
			loop := make(geometry2D.Polygon2D, nVerts)
			for i := 0; i < nVerts; i++ {
				line = getLineNoComments(reader)
				if _, err = fmt.Sscanf(line, "%f %f",
					&loop[i].X[0], &loop[i].X[1]); err != nil {
					panic(fmt.Errorf("bad trimming vertex line [%s]: %s", line, err))
				}
			}
			ps.Trim.Loops = append(ps.Trim.Loops, loop)
		}
	}
	return
}

func readDirichlet(reader *bufio.Reader, m *IGA.Mesh, count int) {
	for i := 0; i < count; i++ {
		var dof int
		line := getLineNoComments(reader)
		if _, err := fmt.Sscanf(line, "%d", &dof); err != nil {
			panic(fmt.Errorf("bad dirichlet line [%s]: %s", line, err))
		}
		m.ClampedDofs = append(m.ClampedDofs, dof)
	}
	nDirs := readNumber(reader, "DIRECTIONS")
	for i := 0; i < nDirs; i++ {
		var dir int
		line := getLineNoComments(reader)
		if _, err := fmt.Sscanf(line, "%d", &dir); err != nil {
			panic(fmt.Errorf("bad direction line [%s]: %s", line, err))
		}
		m.ClampedDirections = append(m.ClampedDirections, dir)
	}
}

func readContinuity(reader *bufio.Reader, m *IGA.Mesh, count int) {
	for i := 0; i < count; i++ {
		var (
			wc  IGA.WeakContinuityCondition
			rev int
		)
		line := getLineNoComments(reader)
		if _, err := fmt.Sscanf(line, "%d %d %d %d %d", &wc.MasterPatch, &wc.MasterEdge,
			&wc.SlavePatch, &wc.SlaveEdge, &rev); err != nil {
			panic(fmt.Errorf("bad continuity line [%s]: %s", line, err))
		}
		wc.SlaveReversed = rev != 0
		m.WeakConditions = append(m.WeakConditions, &wc)
	}
}

func readFloats(reader *bufio.Reader, count int) (vals []float64) {
	vals = make([]float64, 0, count)
	for len(vals) < count {
		fields := strings.Fields(getLineNoComments(reader))
		for _, f := range fields {
			var v float64
			if _, err := fmt.Sscanf(f, "%f", &v); err != nil {
				panic(fmt.Errorf("unable to read float from [%s]", f))
			}
			vals = append(vals, v)
		}
	}
	if len(vals) != count {
		panic(fmt.Errorf("expected %d values, have %d", count, len(vals)))
	}
	return
}

func getLine(reader *bufio.Reader) (line string, eof bool) {
	var err error
	if line, err = reader.ReadString('\n'); err != nil {
		if err != io.EOF {
			panic(err)
		}
		eof = len(line) == 0
	}
	return strings.TrimRight(line, "\r\n"), eof
}

// nextLine returns the next non-empty, non-comment line; ok is false at EOF.
func nextLine(reader *bufio.Reader) (line string, ok bool) {
	for {
		raw, eof := getLine(reader)
		if eof {
			return "", false
		}
		line = strings.Trim(raw, " \t")
		if len(line) == 0 || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
}

func getLineNoComments(reader *bufio.Reader) (line string) {
	line, ok := nextLine(reader)
	if !ok {
		panic(fmt.Errorf("unexpected end of file"))
	}
	return
}

// getToken reads the next "KEY = value" line, checking the key.
func getToken(reader *bufio.Reader, key string) (token string) {
	line := getLineNoComments(reader)
	ind := strings.Index(line, "=")
	if ind < 0 {
		panic(fmt.Errorf("badly formed input line [%s], should have an =", line))
	}
	if k := strings.Trim(line[:ind], " \t"); k != key {
		panic(fmt.Errorf("expected key %s, have [%s]", key, k))
	}
	token = line[ind+1:]
	return
}

func readLabel(reader *bufio.Reader, key string) (label string) {
	token := getToken(reader, key)
	if _, err := fmt.Sscanf(token, "%s", &label); err != nil {
		panic(fmt.Errorf("unable to read label from token: [%s]", token))
	}
	return strings.Trim(label, " ")
}

func readNumber(reader *bufio.Reader, key string) (num int) {
	token := getToken(reader, key)
	if _, err := fmt.Sscanf(token, "%d", &num); err != nil {
		panic(fmt.Errorf("unable to read number from token: [%s]", token))
	}
	return
}
