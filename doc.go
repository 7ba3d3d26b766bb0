/*
Package pv provides a cycle-accurate, two-phase simulation kernel for
describing and clocking hardware designs in Go.

A design is a tree of Modules. Modules hold Wires (combinational signals)
and Registers (edge-triggered flip-flops), and implement an Evaluate method
that is re-run whenever something they are sensitized to changes. A Root
drives the whole tree one clock at a time: registers commit on the rising
edge, combinational logic is iterated to a fixed point, and then wires
settle on the falling edge. An optional VCD trace of the run can be written
with the pv/vcd package.

The API is designed to mimic a Verilog-style hardware description language.
As in the original library this package was ported from, writes to a
register's source ("D") are non-blocking: they take effect on the next
positive edge, while reads always observe the register's replica ("Q").
*/
package pv
