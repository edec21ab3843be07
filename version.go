package fsmsim

// Version is the library version, reported by 'fsmsim version'.
var Version = "0.3.0"
