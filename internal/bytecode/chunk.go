package bytecode

import "encoding/binary"

// DebugInfo stores the source location a single bytecode byte originated
// from, keyed by its index in Chunk.Code. Only the first byte of a multi-byte
// instruction is expected to carry meaningful info.
type DebugInfo struct {
	Line     int
	Column   int
	File     string
	Function string
}

// Chunk is a compiled program or function body: the flat instruction stream
// plus its constant table. Constants holds literals (Go float64, string and
// bool values, or a *vm.FuncLiteral carrying the nested *Chunk of a
// function literal); Names holds the
// interned-string pool addressed by name-ids in decl_var/set_name/get_name
// operands. The top-level program is a Chunk compiled as if it were a
// function body running in the global scope record.
type Chunk struct {
	Code      []byte
	Constants []interface{}
	Names     []string
	Debug     []DebugInfo
}

// NewChunk returns an empty Chunk ready for building.
func NewChunk() *Chunk {
	return &Chunk{}
}

func (c *Chunk) WriteOp(op OpCode) {
	c.Code = append(c.Code, byte(op))
	c.Debug = append(c.Debug, DebugInfo{})
}

func (c *Chunk) WriteOpWithDebug(op OpCode, debug DebugInfo) {
	c.Code = append(c.Code, byte(op))
	c.Debug = append(c.Debug, debug)
}

func (c *Chunk) WriteByte(b byte) {
	c.Code = append(c.Code, b)
	c.Debug = append(c.Debug, DebugInfo{})
}

// WriteInt32 appends a little-endian 4-byte operand.
func (c *Chunk) WriteInt32(v int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	c.Code = append(c.Code, buf[:]...)
	c.Debug = append(c.Debug, DebugInfo{}, DebugInfo{}, DebugInfo{}, DebugInfo{})
}

// PatchInt32 overwrites the 4-byte operand at byte offset pos.
func (c *Chunk) PatchInt32(pos int, v int32) {
	binary.LittleEndian.PutUint32(c.Code[pos:pos+4], uint32(v))
}

// ReadInt32 reads the 4-byte little-endian operand starting at pos.
func (c *Chunk) ReadInt32(pos int) int32 {
	return int32(binary.LittleEndian.Uint32(c.Code[pos : pos+4]))
}

func (c *Chunk) AddConstant(val interface{}) int {
	c.Constants = append(c.Constants, val)
	return len(c.Constants) - 1
}

// InternName returns the name-id for s, interning it if not already present.
// Linear scan is acceptable: programs intern on the order of tens to low
// hundreds of distinct names.
func (c *Chunk) InternName(s string) int {
	for i, n := range c.Names {
		if n == s {
			return i
		}
	}
	c.Names = append(c.Names, s)
	return len(c.Names) - 1
}

func (c *Chunk) GetDebugInfo(ip int) DebugInfo {
	if ip >= 0 && ip < len(c.Debug) {
		return c.Debug[ip]
	}
	return DebugInfo{}
}
