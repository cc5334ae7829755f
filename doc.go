/*
Package vgasim reconstructs the video output of a simulated hardware design.

It loads the design description emitted by an external HDL compiler, binds it
to the compiled executable model, steps the model one clock cycle at a time
and decodes the raster image directly from the design's sync and color
signals. The decoder knows nothing about the design's timing: sync polarity
is inferred from pulse widths and the frame phase is locked onto the vertical
sync edge, so any single-clock design that drives hsync/vsync/rgb ports can
be previewed.

*/
package vgasim
