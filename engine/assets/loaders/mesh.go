package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

/**
 * @brief Reads the plain text model format:
 *
 *	VertexCount: N
 *	TriangleCount: M
 *	VertexList (pos, normal)
 *	{
 *	  px py pz nx ny nz
 *	  ...
 *	}
 *	TriangleList
 *	{
 *	  i0 i1 i2
 *	  ...
 *	}
 *
 * The resource data is a *metadata.MeshData.
 */
type MeshLoader struct{}

func (ml *MeshLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if p, ok := params.(map[string]string); ok && p["name"] != "" {
		name = p["name"]
	}
	mesh, err := ParseMesh(f, name)
	if err != nil {
		core.LogError("mesh %s rejected: %s", path, err.Error())
		return nil, err
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeMesh,
		Name:     name,
		FullPath: path,
		DataSize: uint64(len(mesh.Vertices)*metadata.VertexSize + len(mesh.Indices)*4),
		Data:     mesh,
	}, nil
}

func (ml *MeshLoader) Unload(*metadata.Resource) error {
	return nil
}

type tokenReader struct {
	scanner *bufio.Scanner
	count   int
}

func (tr *tokenReader) next(what string) (string, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: unexpected end of file, expected %s", core.ErrDataFormat, what)
	}
	tr.count++
	return tr.scanner.Text(), nil
}

func (tr *tokenReader) expect(word string) error {
	tok, err := tr.next(word)
	if err != nil {
		return err
	}
	if tok != word {
		return fmt.Errorf("%w: token %d: expected %q, got %q", core.ErrDataFormat, tr.count, word, tok)
	}
	return nil
}

// skipTo consumes tokens up to and including word.
func (tr *tokenReader) skipTo(word string) error {
	for {
		tok, err := tr.next(word)
		if err != nil {
			return err
		}
		if tok == word {
			return nil
		}
	}
}

func (tr *tokenReader) float() (float32, error) {
	tok, err := tr.next("a number")
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: token %d: %q is not a number", core.ErrDataFormat, tr.count, tok)
	}
	return float32(f), nil
}

func (tr *tokenReader) uint(what string) (uint32, error) {
	tok, err := tr.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: token %d: %q is not a valid %s", core.ErrDataFormat, tr.count, tok, what)
	}
	return uint32(v), nil
}

// ParseMesh decodes a model and derives spherical texture coordinates and
// the bounding sphere of its vertices.
func ParseMesh(r io.Reader, name string) (*metadata.MeshData, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	tr := &tokenReader{scanner: scanner}

	if err := tr.expect("VertexCount:"); err != nil {
		return nil, err
	}
	vcount, err := tr.uint("vertex count")
	if err != nil {
		return nil, err
	}
	if err := tr.expect("TriangleCount:"); err != nil {
		return nil, err
	}
	tcount, err := tr.uint("triangle count")
	if err != nil {
		return nil, err
	}
	if vcount == 0 || tcount == 0 {
		return nil, fmt.Errorf("%w: mesh %s has %d vertices and %d triangles", core.ErrDataFormat, name, vcount, tcount)
	}

	if err := tr.expect("VertexList"); err != nil {
		return nil, err
	}
	if err := tr.skipTo("{"); err != nil {
		return nil, err
	}

	mesh := &metadata.MeshData{
		Name:     name,
		Vertices: make([]metadata.Vertex, vcount),
		Indices:  make([]uint32, 3*tcount),
	}
	positions := make([]math.Vec3, vcount)
	for i := range mesh.Vertices {
		var v [6]float32
		for c := range v {
			if v[c], err = tr.float(); err != nil {
				return nil, err
			}
		}
		pos := math.NewVec3(v[0], v[1], v[2])
		positions[i] = pos
		mesh.Vertices[i] = metadata.Vertex{
			Position: pos,
			Normal:   math.NewVec3(v[3], v[4], v[5]),
			TexC:     sphericalTexC(pos),
		}
	}

	if err := tr.expect("}"); err != nil {
		return nil, err
	}
	if err := tr.expect("TriangleList"); err != nil {
		return nil, err
	}
	if err := tr.expect("{"); err != nil {
		return nil, err
	}
	for i := range mesh.Indices {
		idx, err := tr.uint("vertex index")
		if err != nil {
			return nil, err
		}
		if idx >= vcount {
			return nil, fmt.Errorf("%w: index %d out of %d vertices", core.ErrDataFormat, idx, vcount)
		}
		mesh.Indices[i] = idx
	}

	mesh.Bounds = math.NewBoundingSphereFromPoints(positions)
	return mesh, nil
}

// sphericalTexC projects p onto the unit sphere and maps longitude and
// colatitude to [0,1].
func sphericalTexC(p math.Vec3) math.Vec2 {
	if p.LengthSquared() == 0 {
		return math.Vec2{}
	}
	s := p.Normalized()
	theta := math32.Atan2(s.Z, s.X)
	if theta < 0 {
		theta += math.K_PI_2
	}
	phi := math32.Acos(math.Clamp(s.Y, -1, 1))
	return math.Vec2{X: theta / math.K_PI_2, Y: phi / math.K_PI}
}
