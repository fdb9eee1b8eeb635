package script

import "github.com/alecthomas/participle/v2/lexer"

// File is a parsed script.
type File struct {
	Stmts []*Stmt `@@*`
}

// Stmt is one script statement.
type Stmt struct {
	Pos lexer.Position

	GPIO  *GPIOStmt  `  "gpio" @@`
	SPI   *SPIStmt   `| "spi" @@`
	I2C   *I2CStmt   `| "i2c" @@`
	Delay *DelayStmt `| "delay" @@`
}

// GPIOStmt drives an output pin.
// Example: gpio AD3 high
type GPIOStmt struct {
	Pin   string `@Ident`
	Level string `@( "high" | "low" )`
}

// SPIStmt clocks bytes out, optionally printing what was read, or selects
// the clock mode.
// Examples: spi xfer 0x9F 0 0 0, spi mode 2
type SPIStmt struct {
	Op   string   `@( "write" | "xfer" | "mode" )`
	Data []string `@( Hex | Int )*`
}

// I2CStmt is a transaction with one target.
// Examples: i2c 0x50 write 0x00 0x10, i2c 0x50 read 4, i2c 0x68 xfer 0x75 : 1
type I2CStmt struct {
	Addr  string   `@( Hex | Int )`
	Op    string   `@( "write" | "read" | "xfer" )`
	Data  []string `@( Hex | Int )*`
	Count *int     `( Colon @Int )?`
}

// DelayStmt pauses the script.
// Example: delay 10ms
type DelayStmt struct {
	Duration string `@Duration`
}
