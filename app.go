// Package realtimemesh hosts realtime meshes in a frame loop: an App made of
// modules, stages and systems, and the module that runs the mesh render and
// game threads and presents each mesh's render proxy.
package realtimemesh

import (
	"fmt"
	"reflect"
	"runtime"

	"go.uber.org/multierr"
)

type systemFn any

type Module interface {
	Install(app *App, cmd *Commands)
}

type App struct {
	stateful           bool
	stateTransitioning bool
	initialState       State
	finalState         State
	nextState          State
	state              State
	stages             []Stage
	systems            map[string]map[State]map[statePhase][]systemFn
	systemsStateless   map[string][]systemFn
	resources          map[reflect.Type]any
	resourceOrder      []any

	started  bool
	exiting  bool
	finished bool
	closed   bool
	frame    uint64
}

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

// Run steps frames until the final state is left or Exit is requested, then
// closes the resources.
func (app *App) Run() {
	if app.stateful {
		app.Logger().Infof("Running in stateful mode...")
	} else {
		app.Logger().Infof("Running in stateless mode...")
	}
	for app.Step() {
	}
	if err := app.Shutdown(); err != nil {
		app.Logger().Errorf("shutdown: %v", err)
	}
}

// Step runs one frame through every stage. It returns false once the app
// has finished.
func (app *App) Step() bool {
	if app.finished {
		return false
	}
	if !app.started {
		app.started = true
		if app.stateful {
			app.state = app.initialState
			app.callSystems(app.state, enter)
		}
	}

	app.callSystems(app.state, execute)
	app.frame++

	if app.stateful {
		if app.stateTransitioning {
			app.stateTransitioning = false
			app.executeChangeState(app.nextState)
		}
		if app.state == app.finalState || app.exiting {
			app.callSystems(app.state, exit)
			app.finished = true
		}
	} else if app.exiting {
		app.finished = true
	}
	return !app.finished
}

// Frame is the number of frames stepped so far.
func (app *App) Frame() uint64 { return app.frame }

func (app *App) callSystems(state State, phase statePhase) {
	for _, stage := range app.stages {
		// Stateless systems only run on execute, before the stateful ones.
		if execute == phase {
			for _, system := range app.systemsStateless[stage.Name] {
				app.callSystem(system)
			}
		}

		if app.stateful {
			if systemsInStage, ok := app.systems[stage.Name]; ok {
				if systemsInState, ok := systemsInStage[state]; ok {
					for _, system := range systemsInState[phase] {
						app.callSystem(system)
					}
				}
			}
		}
	}
}

func (app *App) changeState(newState State) {
	app.nextState = newState
	app.stateTransitioning = true
}

func (app *App) executeChangeState(newState State) {
	app.callSystems(app.state, exit)
	app.state = newState
	app.callSystems(app.state, enter)
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
		app.resourceOrder = append(app.resourceOrder, resource)
	}
	return app
}

// Resource returns the resource of type *T, or nil.
func Resource[T any](app *App) *T {
	r, ok := app.resources[reflect.TypeFor[T]()]
	if !ok {
		return nil
	}
	return r.(*T)
}

// Shutdown closes every resource that has a Close method, newest first.
// Later calls do nothing.
func (app *App) Shutdown() error {
	if app.closed {
		return nil
	}
	app.closed = true
	var err error
	for i := len(app.resourceOrder) - 1; i >= 0; i-- {
		switch c := app.resourceOrder[i].(type) {
		case interface{ Close() error }:
			err = multierr.Append(err, c.Close())
		case interface{ Close() }:
			c.Close()
		}
	}
	return err
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			app.Logger().Errorf("%s", msg)
			panic(msg)
		}
	}
	systemValue.Call(args)
}
