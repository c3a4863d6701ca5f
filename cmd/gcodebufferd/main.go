package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/mastercactapus/gcodebuffer/gcode"
)

func main() {
	log.SetFlags(log.Lshortfile)

	port := flag.String("port", "/dev/ttyUSB0", "Serial port to read G-code from.")
	baud := flag.Int("baud", 115200, "Baud rate for -port.")
	addr := flag.String("addr", ":9090", "Address to bind the gcodebufferd server to.")
	dir := flag.String("dir", "./macros", "Macro directory to serve.")
	machineType := flag.String("machine", "fff", "Machine type: fff, cnc, or laser.")
	checksumRequired := flag.Bool("require-checksum", false, "Reject outermost-scope lines without a checksum.")
	flag.Parse()

	cfg := gcode.DefaultConfig()
	switch *machineType {
	case "fff":
		cfg.MachineType = gcode.MachineTypeFFF
	case "cnc":
		cfg.MachineType = gcode.MachineTypeCNC
		cfg.AxisLetters = "XYZABCUVW"
	case "laser":
		cfg.MachineType = gcode.MachineTypeLaser
	default:
		log.Fatal("unknown -machine: ", *machineType)
	}
	cfg.ChecksumRequired = *checksumRequired

	d := newDaemon(cfg, *dir)

	if err := d.openSerial(*port, *baud); err != nil {
		log.Println("ERROR: open serial port:", err)
	}

	api := newAPI(d)

	err := http.ListenAndServe(*addr, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		log.Printf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
		api.ServeHTTP(w, req)
	}))
	if err != nil {
		log.Fatal(err)
	}
}
