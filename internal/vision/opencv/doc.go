// Package opencv implements the vision collaborators on top of OpenCV.
//
// Every type here owns native resources and must be closed. The cascade
// detector and the network classifier are not safe for concurrent use by
// OpenCV itself, so both serialize calls with a mutex.
package opencv
