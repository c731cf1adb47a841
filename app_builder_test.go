package realtimemesh

import "testing"

type MockModule struct {
	installed bool
	sawStages int
}

func (m *MockModule) Install(app *App, commands *Commands) {
	m.installed = true
	m.sawStages = len(app.stages)
}

type orderModule struct {
	name  string
	order *[]string
}

func (m orderModule) Install(app *App, commands *Commands) {
	*m.order = append(*m.order, m.name)
}

func TestAppBuilder_Stateless(t *testing.T) {
	app := NewAppBuilder().Build()

	if app.stateful {
		t.Errorf("Expected stateful to be false, got %v", app.stateful)
	}
	if app.initialState != 0 || app.finalState != 0 {
		t.Errorf("Expected zero states, got %v..%v", app.initialState, app.finalState)
	}
	if len(app.systems) != 0 {
		t.Errorf("Expected no stateful stages in a stateless app, got %d", len(app.systems))
	}
}

func TestAppBuilder_UseStates(t *testing.T) {
	app := NewAppBuilder().UseStates(1, 10).Build()

	if !app.stateful {
		t.Errorf("Expected stateful to be true")
	}
	if app.initialState != 1 || app.finalState != 10 {
		t.Errorf("Expected states 1..10, got %v..%v", app.initialState, app.finalState)
	}
	if got := len(app.systems[Render.Name]); got != 10 {
		t.Errorf("Expected 10 states registered in the Render stage, got %d", got)
	}
}

func TestAppBuilder_ModulesSeeStages(t *testing.T) {
	module := &MockModule{}
	NewAppBuilder().UseModule(module).Build()

	if !module.installed {
		t.Errorf("Expected Install to be called on the module, but it was not")
	}
	if module.sawStages != len(DefaultStages()) {
		t.Errorf("Expected modules to install after the %d default stages exist, saw %d", len(DefaultStages()), module.sawStages)
	}
}

func TestAppBuilder_InstallOrder(t *testing.T) {
	var order []string
	builder := NewAppBuilder().
		UseModule(orderModule{"logging", &order}).
		UseModule(orderModule{"mesh", &order}, orderModule{"game", &order})

	if len(builder.modules) != 3 {
		t.Errorf("Expected 3 modules, got %v", len(builder.modules))
	}
	builder.Build()
	if len(order) != 3 || order[0] != "logging" || order[1] != "mesh" || order[2] != "game" {
		t.Errorf("Expected modules installed in order, got %v", order)
	}
}
