/*
Package hardware defines the boundary between procedures and the instruments of a station.

A Station is the hardware-handle set owned by the scheduler: procedures address instrument parameters
as "instrument.param" (for example "cryocon.loop1_setpoint"). Instruments are thin command/response
bindings; LineInstrument speaks the terminator-delimited protocol used by serial temperature controllers
and Simulated keeps values in memory for dry runs and tests.
*/
package hardware
