// Package arrays converts snapshots into the index based numeric problem
// consumed by array solvers, and converts their index sequences back into
// parcel routes.
//
// Location indices follow a fixed layout: 0 is the current vehicle position,
// 1 is the depot, then come the pickup locations of the available parcels,
// their delivery locations in the same order, and finally the delivery
// locations of the parcels already aboard a vehicle.
package arrays
