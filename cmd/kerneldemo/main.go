// Command kerneldemo wires a kernel.Kernel to a stdout-backed console and
// display, forks a couple of demonstration tasks, drives the scheduler by
// hand for a few ticks, and prints a final occupancy profile. It exists to
// exercise internal/kernel, internal/syscall, and internal/sched end to end
// outside of the test suite — the hosted stand-in for biscuit's own
// bare-metal boot path.
package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/Alec-Sobeck/Operating-System/internal/kernel"
	"github.com/Alec-Sobeck/Operating-System/internal/sched"
	"github.com/Alec-Sobeck/Operating-System/internal/syscall"
)

// stdoutConsole implements syscall.Console over a buffered stdout writer.
type stdoutConsole struct {
	w *bufio.Writer
}

func (c *stdoutConsole) WriteString(s string) { c.w.WriteString(s); c.w.Flush() }
func (c *stdoutConsole) WriteHex(n uint32)     { fmt.Fprintf(c.w, "0x%x", n); c.w.Flush() }
func (c *stdoutConsole) WriteDec(n uint32)     { fmt.Fprintf(c.w, "%d", n); c.w.Flush() }

// textDisplay implements syscall.Display by printing the cell it was asked
// to colour; there is no real framebuffer in a hosted demo.
type textDisplay struct {
	w *bufio.Writer
}

func (d *textDisplay) SetColour(x, y int, colour uint32) {
	fmt.Fprintf(d.w, "[monitor_colour x=%d y=%d colour=0x%06x]\n", x, y, colour)
	d.w.Flush()
}

func main() {
	out := bufio.NewWriter(os.Stdout)
	k := kernel.New(4096, &stdoutConsole{w: out}, &textDisplay{w: out}, nil)
	idle := k.Bootstrap()

	greeterPid := k.Trap(idle, syscall.SysFork, syscall.Args{
		Body: func(kn *sched.Kernel, self *sched.Task) {
			ptr := self.Heap.Alloc(32, false)
			self.AS.WriteBytes(ptr, []byte("hello from a forked task\x00"))
			kn.Yield(self) // let the parent observe the fork before printing
		},
	})
	out.WriteString(fmt.Sprintf("forked greeter pid=%d\n", greeterPid))
	out.Flush()

	for i := 0; i < 8; i++ {
		k.Sched.Tick()
		time.Sleep(time.Millisecond)
	}

	prof := k.CaptureProfile()
	out.WriteString(fmt.Sprintf("captured profile with %d samples\n", len(prof.Sample)))
	out.Flush()
}
