package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/mathclass/mathclass-lms/internal/api/http"
	"github.com/mathclass/mathclass-lms/internal/attempt"
	auth "github.com/mathclass/mathclass-lms/internal/auth/middleware"
	"github.com/mathclass/mathclass-lms/internal/config"
	"github.com/mathclass/mathclass-lms/internal/course"
	"github.com/mathclass/mathclass-lms/internal/db"
	"github.com/mathclass/mathclass-lms/internal/grading"
	"github.com/mathclass/mathclass-lms/internal/quiz"
	"github.com/mathclass/mathclass-lms/internal/rbac"
	"github.com/mathclass/mathclass-lms/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	courses := course.NewSQLStore(dbh)
	quizzes := quiz.NewSQLStore(dbh)
	attempts := attempt.NewService(dbh, quizzes, grading.NewDefaultGrader())
	grader := grading.NewService(dbh)

	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL)
	if err := auth.EnsureAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatalf("ensure admin: %v", err)
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath, cfg.PublicURL+"/assets")
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public surface
	r.Post("/auth/register", auth.RegisterHandler(dbh))
	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	r.Get("/public/materials", api.ListMaterialsHandler(courses))
	r.Get("/public/materials/{materialID}", api.GetMaterialHandler(courses))
	// downloads stay public: the material catalog above links straight here
	r.Get("/assets/*", api.DownloadAssetHandler(bs))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Role dashboards. Gated on role alone so an unapproved teacher gets the
	// pending-approval redirect instead of a bare 403.
	r.Group(func(dr chi.Router) {
		dr.Use(auth.JWTMiddleware(authSvc))
		dr.With(rbac.DashboardGate(rbac.RoleAdmin)).Get("/dashboard/admin/summary", api.AdminDashboardHandler(dbh))
		dr.With(rbac.DashboardGate(rbac.RoleTeacher)).Get("/dashboard/teacher/summary", api.TeacherDashboardHandler(dbh))
		dr.With(rbac.DashboardGate(rbac.RoleStudent)).Get("/dashboard/student/summary", api.StudentDashboardHandler(dbh))
	})

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(rbac.RequireApprovedTeacher)

		// courses
		pr.With(rbac.Require("course:create")).Post("/courses", api.CreateCourseHandler(courses))
		pr.With(rbac.Require("course:view")).Get("/courses", api.ListCoursesHandler(courses))
		pr.With(rbac.Require("course:view")).Get("/courses/{courseID}", api.GetCourseHandler(courses))
		pr.With(rbac.Require("course:update")).Put("/courses/{courseID}", api.UpdateCourseHandler(courses))
		pr.With(rbac.Require("course:delete")).Delete("/courses/{courseID}", api.DeleteCourseHandler(courses))

		// lessons
		pr.With(rbac.Require("lesson:create")).Post("/courses/{courseID}/lessons", api.CreateLessonHandler(courses))
		pr.With(rbac.Require("course:view")).Get("/courses/{courseID}/lessons", api.ListLessonsHandler(courses))
		pr.With(rbac.Require("course:view")).Get("/lessons/{lessonID}", api.GetLessonHandler(courses))
		pr.With(rbac.Require("lesson:update")).Put("/lessons/{lessonID}", api.UpdateLessonHandler(courses))
		pr.With(rbac.Require("lesson:delete")).Delete("/lessons/{lessonID}", api.DeleteLessonHandler(courses))

		// materials (authoring; public reads are above)
		pr.With(rbac.Require("material:create")).Post("/materials", api.CreateMaterialHandler(courses))
		pr.With(rbac.Require("material:view")).Get("/materials", api.ListMaterialsHandler(courses))
		pr.With(rbac.Require("material:view")).Get("/materials/{materialID}", api.GetMaterialHandler(courses))
		pr.With(rbac.Require("material:update")).Put("/materials/{materialID}", api.UpdateMaterialHandler(courses))
		pr.With(rbac.Require("material:delete")).Delete("/materials/{materialID}", api.DeleteMaterialHandler(courses))

		// enrollment
		pr.With(rbac.Require("course:enroll")).Post("/courses/{courseID}/enroll", api.EnrollHandler(courses))
		pr.With(rbac.Require("course:enroll")).Delete("/courses/{courseID}/enroll", api.UnenrollHandler(courses))
		pr.With(rbac.Require("course:enroll")).Post("/enrollments/batch", api.EnrollBatchHandler(courses))
		pr.With(rbac.RequireAny("course:update", "course:view-all")).
			Get("/courses/{courseID}/enrollments", api.ListEnrollmentsHandler(courses))

		// quizzes and questions
		pr.With(rbac.Require("quiz:create")).Post("/quizzes", api.CreateQuizHandler(quizzes))
		pr.With(rbac.Require("quiz:view")).Get("/quizzes", api.ListQuizzesHandler(quizzes))
		pr.With(rbac.Require("quiz:view")).Get("/quizzes/{quizID}", api.GetQuizHandler(quizzes))
		pr.With(rbac.Require("quiz:update")).Put("/quizzes/{quizID}", api.UpdateQuizHandler(quizzes))
		pr.With(rbac.Require("quiz:delete")).Delete("/quizzes/{quizID}", api.DeleteQuizHandler(quizzes))
		pr.With(rbac.Require("question:create")).Post("/quizzes/{quizID}/questions", api.CreateQuestionHandler(quizzes))
		pr.With(rbac.Require("question:update")).Put("/quizzes/{quizID}/questions/{questionID}", api.UpdateQuestionHandler(quizzes))
		pr.With(rbac.Require("question:delete")).Delete("/quizzes/{quizID}/questions/{questionID}", api.DeleteQuestionHandler(quizzes))

		// attempt lifecycle
		pr.With(rbac.Require("attempt:create")).Post("/attempts", api.CreateAttemptHandler(attempts))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(attempts))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/time", api.GetAttemptTimeHandler(attempts))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/submissions", api.ListAttemptSubmissionsHandler(attempts))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/answers/{questionID}", api.SaveAnswerHandler(attempts))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(attempts))

		// results
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/results", api.ListResultsHandler(attempts))
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/results/{resultID}", api.GetResultHandler(attempts))

		// manual grading
		pr.With(rbac.Require("grading:list")).Get("/grading/pending", api.ListPendingGradingHandler(grader))
		pr.With(rbac.Require("grading:apply")).Post("/submissions/{submissionID}/grade", api.GradeSubmissionHandler(grader))

		// account
		pr.With(rbac.Require("user:change_password")).Post("/users/change-password", auth.ChangePasswordHandler(dbh))

		// admin
		pr.With(rbac.Require("users:list")).Get("/admin/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("users:approve")).Post("/admin/users/{userID}/approve", api.ApproveTeacherHandler(dbh))
		pr.With(rbac.Require("users:update")).Patch("/admin/users/{userID}", api.UpdateUserHandler(dbh))
		pr.With(rbac.Require("users:delete")).Delete("/admin/users/{userID}", api.DeleteUserHandler(dbh))

		// asset uploads need a logged-in user; downloads are mounted publicly
		pr.Post("/assets", api.UploadAssetHandler(bs))
	})

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
