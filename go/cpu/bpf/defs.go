package bpf

// Classic BPF opcode fields, as laid out in linux/filter.h.
// An instruction is {code uint16, jt uint8, jf uint8, k uint32}, little endian.
const (
	// class = code & 0x07
	CLASS_LD   = 0x00
	CLASS_LDX  = 0x01
	CLASS_ST   = 0x02
	CLASS_STX  = 0x03
	CLASS_ALU  = 0x04
	CLASS_JMP  = 0x05
	CLASS_RET  = 0x06
	CLASS_MISC = 0x07

	// ld/ldx size = code & 0x18
	SIZE_W = 0x00
	SIZE_H = 0x08
	SIZE_B = 0x10

	// ld/ldx mode = code & 0xe0
	MODE_IMM = 0x00
	MODE_ABS = 0x20
	MODE_IND = 0x40
	MODE_MEM = 0x60
	MODE_LEN = 0x80
	MODE_MSH = 0xa0

	// alu/jmp op = code & 0xf0
	ALU_ADD = 0x00
	ALU_SUB = 0x10
	ALU_MUL = 0x20
	ALU_DIV = 0x30
	ALU_OR  = 0x40
	ALU_AND = 0x50
	ALU_LSH = 0x60
	ALU_RSH = 0x70
	ALU_NEG = 0x80
	ALU_MOD = 0x90
	ALU_XOR = 0xa0

	JMP_JA   = 0x00
	JMP_JEQ  = 0x10
	JMP_JGT  = 0x20
	JMP_JGE  = 0x30
	JMP_JSET = 0x40

	// alu/jmp source = code & 0x08
	SRC_K = 0x00
	SRC_X = 0x08

	// ret value = code & 0x18
	RVAL_K = 0x00
	RVAL_X = 0x08
	RVAL_A = 0x10

	MISC_TAX = 0x00
	MISC_TXA = 0x80
)

// Fully assembled opcodes for the common instructions.
const (
	OP_LD_W_ABS  = CLASS_LD | SIZE_W | MODE_ABS
	OP_LD_H_ABS  = CLASS_LD | SIZE_H | MODE_ABS
	OP_LD_B_ABS  = CLASS_LD | SIZE_B | MODE_ABS
	OP_LD_W_IND  = CLASS_LD | SIZE_W | MODE_IND
	OP_LD_H_IND  = CLASS_LD | SIZE_H | MODE_IND
	OP_LD_B_IND  = CLASS_LD | SIZE_B | MODE_IND
	OP_LD_IMM    = CLASS_LD | SIZE_W | MODE_IMM
	OP_LD_MEM    = CLASS_LD | SIZE_W | MODE_MEM
	OP_LD_LEN    = CLASS_LD | SIZE_W | MODE_LEN
	OP_LDX_IMM   = CLASS_LDX | SIZE_W | MODE_IMM
	OP_LDX_MEM   = CLASS_LDX | SIZE_W | MODE_MEM
	OP_LDX_LEN   = CLASS_LDX | SIZE_W | MODE_LEN
	OP_LDX_B_MSH = CLASS_LDX | SIZE_B | MODE_MSH
	OP_ST        = CLASS_ST
	OP_STX       = CLASS_STX
	OP_JA        = CLASS_JMP | JMP_JA
	OP_JEQ_K     = CLASS_JMP | JMP_JEQ | SRC_K
	OP_JEQ_X     = CLASS_JMP | JMP_JEQ | SRC_X
	OP_JGT_K     = CLASS_JMP | JMP_JGT | SRC_K
	OP_JGT_X     = CLASS_JMP | JMP_JGT | SRC_X
	OP_JGE_K     = CLASS_JMP | JMP_JGE | SRC_K
	OP_JGE_X     = CLASS_JMP | JMP_JGE | SRC_X
	OP_JSET_K    = CLASS_JMP | JMP_JSET | SRC_K
	OP_JSET_X    = CLASS_JMP | JMP_JSET | SRC_X
	OP_RET_K     = CLASS_RET | RVAL_K
	OP_RET_X     = CLASS_RET | RVAL_X
	OP_RET_A     = CLASS_RET | RVAL_A
	OP_TAX       = CLASS_MISC | MISC_TAX
	OP_TXA       = CLASS_MISC | MISC_TXA
)

// number of 32-bit scratch slots, M[0] to M[15]
const MEMWORDS = 16

var aluNames = map[uint16]string{
	ALU_ADD: "add",
	ALU_SUB: "sub",
	ALU_MUL: "mul",
	ALU_DIV: "div",
	ALU_OR:  "or",
	ALU_AND: "and",
	ALU_LSH: "lsh",
	ALU_RSH: "rsh",
	ALU_NEG: "neg",
	ALU_MOD: "mod",
	ALU_XOR: "xor",
}

var jmpNames = map[uint16]string{
	JMP_JA:   "jmp",
	JMP_JEQ:  "jeq",
	JMP_JGT:  "jgt",
	JMP_JGE:  "jge",
	JMP_JSET: "jset",
}

var sizeBytes = map[uint16]int{
	SIZE_W: 4,
	SIZE_H: 2,
	SIZE_B: 1,
}

/*
   operand syntax

   #k           literal value k
   #len         packet length
   x, a         registers
   [k]          B/H/W at byte offset k in the packet
   [x + k]      B/H/W at byte offset X + k in the packet
   M[k]         word k of the scratch memory
   4*([k]&0xf)  lower nibble * 4 of the byte at offset k in the packet
*/
